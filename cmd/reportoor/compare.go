package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/reportoor/pkg/client"
	"github.com/ethpandaops/reportoor/pkg/compare"
	"github.com/ethpandaops/reportoor/pkg/model"
)

var compareCmd = &cobra.Command{
	Use:   "compare <run-id> <baseline-id>",
	Short: "Compare two runs metric by metric",
	Long: `Fetch the summarized records of two runs and print the metric deltas.
Improvement direction follows each metric's polarity: fewer failures
and shorter durations are better, more passes are better, and total is
neutral.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c := client.New(log, cfg)

	current, err := c.GetComparisonRun(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fetching run %s: %w", args[0], err)
	}

	baseline, err := c.GetComparisonRun(ctx, args[1])
	if err != nil {
		return fmt.Errorf("fetching baseline %s: %w", args[1], err)
	}

	result := compare.Compare(current, baseline)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("%s vs %s", current.RunID, baseline.RunID)
	t.AppendHeader(table.Row{"Metric", "Current", "Baseline", "Delta", "Improved"})

	for _, name := range compare.Metrics() {
		m := result[name]

		value := fmt.Sprintf("%d", m.Current)
		base := fmt.Sprintf("%d", m.Baseline)
		delta := fmt.Sprintf("%+d", m.Delta.Value)

		if name == compare.MetricDuration {
			value = model.FormatDuration(m.Current)
			base = model.FormatDuration(m.Baseline)
		}

		improved := ""
		if m.Improved {
			improved = "yes"
		}

		t.AppendRow(table.Row{name, value, base, delta, improved})
	}

	t.Render()

	return nil
}
