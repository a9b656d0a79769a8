package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/reportoor/pkg/client"
	"github.com/ethpandaops/reportoor/pkg/model"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the upstream results service",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c := client.New(log, cfg)

	records, err := c.GetRunHistory(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("fetching run history: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Suite", "Status", "Passed", "Failed", "Duration", "Created"})

	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.RunID,
			rec.SuiteID,
			rec.Status,
			rec.Passed,
			rec.Failed,
			model.FormatDuration(rec.DurationMS),
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	t.Render()

	return nil
}
