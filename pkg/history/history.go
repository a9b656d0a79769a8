// Package history persists summarized run records so the dashboard
// can list past runs and pick comparison baselines without refetching
// every run from upstream.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/model"
)

// ErrNotFound is returned when a run record does not exist.
var ErrNotFound = errors.New("run record not found")

// Store provides persistence for summarized run records.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	UpsertRun(ctx context.Context, rec model.RunRecord) error
	GetRun(ctx context.Context, runID string) (model.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	ListRunsBySuite(ctx context.Context, suiteID string, limit int) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, runID string) error
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a history Store backed by the configured database
// driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "history"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(&Run{}); err != nil {
		return fmt.Errorf("running history migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("History database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// UpsertRun inserts or updates a record keyed by run id.
func (s *store) UpsertRun(ctx context.Context, rec model.RunRecord) error {
	row := fromRecord(rec)

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upserting run %s: %w", rec.RunID, err)
	}

	return nil
}

// GetRun fetches a single record by run id.
func (s *store) GetRun(ctx context.Context, runID string) (model.RunRecord, error) {
	var row Run

	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.RunRecord{}, ErrNotFound
		}

		return model.RunRecord{}, fmt.Errorf("fetching run %s: %w", runID, err)
	}

	return row.toRecord(), nil
}

// ListRuns returns the most recent records, newest first.
func (s *store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	return s.list(ctx, s.db.WithContext(ctx), limit)
}

// ListRunsBySuite returns the most recent records for one suite,
// newest first.
func (s *store) ListRunsBySuite(
	ctx context.Context, suiteID string, limit int,
) ([]model.RunRecord, error) {
	return s.list(ctx, s.db.WithContext(ctx).Where("suite_id = ?", suiteID), limit)
}

func (s *store) list(ctx context.Context, tx *gorm.DB, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []Run

	err := tx.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	records := make([]model.RunRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}

	return records, nil
}

// DeleteRun removes a record by run id.
func (s *store) DeleteRun(ctx context.Context, runID string) error {
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Delete(&Run{}).Error
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}

	return nil
}
