package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/reportoor/pkg/client"
	"github.com/ethpandaops/reportoor/pkg/export"
	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/upload"
)

var (
	exportOutDir string
	exportUpload bool
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's artifacts",
	Long: `Fetch a run from the upstream results service and write its export
artifacts: HAR network archive, results and logs CSV tables, the
self-contained JSON bundle, and the paginated report document.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutDir, "out", ".", "output directory")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false,
		"upload artifacts to configured object storage")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	runID := args[0]
	ctx := cmd.Context()

	c := client.New(log, cfg)

	run, err := c.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("fetching run: %w", err)
	}

	if err := os.MkdirAll(exportOutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	exporter := export.New(log, cfg.Engine, version)

	artifacts := map[string]func(io.Writer, *model.Run) error{
		runID + ".har":         exporter.WriteHAR,
		runID + "-results.csv": exporter.ResultsCSV,
		runID + "-logs.csv":    exporter.LogsCSV,
		runID + "-bundle.json": exporter.WriteBundle,
		runID + "-report.json": func(w io.Writer, run *model.Run) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")

			return enc.Encode(exporter.Report(run))
		},
	}

	g, _ := errgroup.WithContext(ctx)

	for name, write := range artifacts {
		g.Go(func() error {
			return writeArtifact(filepath.Join(exportOutDir, name), run, write)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.WithField("run_id", runID).
		WithField("dir", exportOutDir).
		WithField("artifacts", len(artifacts)).
		Info("Export completed")

	if exportUpload {
		if cfg.Storage.S3 == nil || !cfg.Storage.S3.Enabled {
			return fmt.Errorf("--upload requires storage.s3 to be enabled in config")
		}

		up, err := upload.NewS3Uploader(log, cfg.Storage.S3)
		if err != nil {
			return fmt.Errorf("creating uploader: %w", err)
		}

		names := make([]string, 0, len(artifacts))
		for name := range artifacts {
			names = append(names, name)
		}

		if err := uploadExported(ctx, up, runID, names); err != nil {
			return err
		}

		log.WithField("run_id", runID).Info("Artifacts uploaded")
	}

	return nil
}

func writeArtifact(path string, run *model.Run, write func(io.Writer, *model.Run) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := write(f, run); err != nil {
		_ = f.Close()

		return fmt.Errorf("writing %s: %w", path, err)
	}

	return f.Close()
}

// uploadExported pushes the written artifact files to object storage.
func uploadExported(ctx context.Context, up upload.Uploader, runID string, names []string) error {
	if err := up.Preflight(ctx); err != nil {
		return fmt.Errorf("storage preflight: %w", err)
	}

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(exportOutDir, name))
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}

		if err := up.PutArtifact(ctx, runID, name, data); err != nil {
			return err
		}
	}

	return nil
}
