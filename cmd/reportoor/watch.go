package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/reportoor/pkg/client"
	"github.com/ethpandaops/reportoor/pkg/live"
	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/snapshot"
)

var watchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Follow a live run",
	Long: `Subscribe to a pending or running run's event stream and apply
incremental updates until the run completes. Interrupting drains the
remaining queued events before exiting.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Request cancellation of an in-progress run",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cancelCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	runID := args[0]

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c := client.New(log, cfg)

	run, err := c.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("fetching run: %w", err)
	}

	store := snapshot.New(log, cfg.Engine)
	store.Load(run)

	if model.Terminal(run.Status) {
		printSummary(store)

		return nil
	}

	ch := live.NewChannel(log, cfg.Engine, c, store)

	if err := ch.Subscribe(ctx, runID); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastVersion := store.Version()

	for {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig).Info("Draining live channel")
			ch.Unsubscribe()
			<-ch.Done()
			printSummary(store)

			return nil
		case <-ticker.C:
			if v := store.Version(); v != lastVersion {
				lastVersion = v

				sum := store.Summary()
				log.WithField("passed", sum.Passed).
					WithField("failed", sum.Failed).
					WithField("total", sum.Total).
					Info("Run progress")
			}
		case <-ch.Done():
			printSummary(store)

			return nil
		}
	}
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c := client.New(log, cfg)

	if err := c.CancelRun(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("cancelling run: %w", err)
	}

	log.WithField("run_id", args[0]).Info("Cancellation requested")

	return nil
}

func printSummary(store *snapshot.Store) {
	run := store.Current()
	sum := store.Summary()

	log.WithField("run_id", run.ID).
		WithField("status", run.Status).
		WithField("passed", sum.Passed).
		WithField("failed", sum.Failed).
		WithField("skipped", sum.Skipped).
		WithField("duration", model.FormatDuration(sum.DurationMS)).
		Info("Run summary")
}
