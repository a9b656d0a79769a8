package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/reportoor/pkg/config"
)

var configInitOut string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVar(&configInitOut, "out", "reportoor.yaml",
		"output path for the generated config")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	cfg.Upstream.BaseURL = "http://localhost:9000"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if _, err := os.Stat(configInitOut); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", configInitOut)
	}

	if err := os.WriteFile(configInitOut, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	log.WithField("path", configInitOut).Info("Config written")

	return nil
}
