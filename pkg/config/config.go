// Package config holds the reportoor configuration, loaded from a
// YAML file with REPORTOOR_-prefixed environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultUpstreamTimeout is the default timeout for upstream fetches.
	DefaultUpstreamTimeout = "30s"

	// DefaultRingCapacity bounds the streamed console-log ring buffer.
	DefaultRingCapacity = 50

	// DefaultFlushWindow bounds how long a draining live channel keeps
	// applying queued events before closing.
	DefaultFlushWindow = "3s"

	// DefaultCancelAckTimeout bounds how long a cancel request waits
	// for the remote acknowledgment before forcing the channel into
	// draining.
	DefaultCancelAckTimeout = "5s"

	// DefaultFloorWidth is the minimum waterfall entry width, percent.
	DefaultFloorWidth = 0.5

	// DefaultPageBudget caps report pagination against pathological
	// inputs.
	DefaultPageBudget = 500

	// DefaultSectionItemCap caps items per report section before the
	// section overflows onto a new page.
	DefaultSectionItemCap = 100

	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"
)

// Config is the root configuration for reportoor.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Storage  StorageConfig  `yaml:"storage,omitempty" mapstructure:"storage"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// UpstreamConfig points at the collaborator results service that
// produces runs, history and the live event stream.
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Timeout string `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// EngineConfig tunes the correlation and export engine.
type EngineConfig struct {
	RingCapacity     int     `yaml:"ring_capacity" mapstructure:"ring_capacity"`
	FlushWindow      string  `yaml:"flush_window" mapstructure:"flush_window"`
	CancelAckTimeout string  `yaml:"cancel_ack_timeout" mapstructure:"cancel_ack_timeout"`
	FloorWidth       float64 `yaml:"floor_width" mapstructure:"floor_width"`
	PageBudget       int     `yaml:"page_budget" mapstructure:"page_budget"`
	SectionItemCap   int     `yaml:"section_item_cap" mapstructure:"section_item_cap"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// DatabaseConfig contains run-history database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
}

// StorageConfig contains artifact upload settings.
type StorageConfig struct {
	S3 *S3Config `yaml:"s3,omitempty" mapstructure:"s3"`
}

// S3Config contains S3-compatible object storage settings for
// exported artifacts.
type S3Config struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// Load reads and parses the configuration file at path, merging
// REPORTOOR_-prefixed environment variables over file values. An
// empty path yields a defaults-only configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REPORTOOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a configuration with every default applied, used by
// `reportoor config init`.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()

	return cfg
}

// applyDefaults sets default values for unspecified options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Upstream.Timeout == "" {
		c.Upstream.Timeout = DefaultUpstreamTimeout
	}

	if c.Engine.RingCapacity <= 0 {
		c.Engine.RingCapacity = DefaultRingCapacity
	}

	if c.Engine.FlushWindow == "" {
		c.Engine.FlushWindow = DefaultFlushWindow
	}

	if c.Engine.CancelAckTimeout == "" {
		c.Engine.CancelAckTimeout = DefaultCancelAckTimeout
	}

	if c.Engine.FloorWidth <= 0 {
		c.Engine.FloorWidth = DefaultFloorWidth
	}

	if c.Engine.PageBudget <= 0 {
		c.Engine.PageBudget = DefaultPageBudget
	}

	if c.Engine.SectionItemCap <= 0 {
		c.Engine.SectionItemCap = DefaultSectionItemCap
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = "reportoor.db"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}

	if _, err := time.ParseDuration(c.Upstream.Timeout); err != nil {
		return fmt.Errorf("upstream.timeout: %w", err)
	}

	if _, err := time.ParseDuration(c.Engine.FlushWindow); err != nil {
		return fmt.Errorf("engine.flush_window: %w", err)
	}

	if _, err := time.ParseDuration(c.Engine.CancelAckTimeout); err != nil {
		return fmt.Errorf("engine.cancel_ack_timeout: %w", err)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Storage.S3 != nil && c.Storage.S3.Enabled && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when s3 is enabled")
	}

	return nil
}

// UpstreamTimeout returns the parsed upstream fetch timeout.
func (c *Config) UpstreamTimeout() time.Duration {
	d, err := time.ParseDuration(c.Upstream.Timeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultUpstreamTimeout)
	}

	return d
}

// FlushWindowDuration returns the parsed draining flush window.
func (c *EngineConfig) FlushWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.FlushWindow)
	if err != nil {
		d, _ = time.ParseDuration(DefaultFlushWindow)
	}

	return d
}

// CancelAckTimeoutDuration returns the parsed cancel ack timeout.
func (c *EngineConfig) CancelAckTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.CancelAckTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultCancelAckTimeout)
	}

	return d
}
