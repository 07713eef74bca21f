package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/norm/focusd/internal/history"
	"github.com/norm/focusd/internal/metrics"
	"github.com/norm/focusd/internal/sinks"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the monitor's last saved status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			snap, err := metrics.Load(cfg.StateDir)
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no status in %s; has the monitor run?", cfg.StateDir)
			}
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(snap)
			}

			last, err := sinks.ReadStatus(cfg.StateDir)
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendRows([]table.Row{
				{"Run", snap.RunID},
				{"Updated", time.UnixMilli(snap.SnapshotTimeMs).Format(time.DateTime)},
				{"Mode", snap.Mode},
				{"Stage", snap.Stage},
				{"Last status", last},
				{"Checks", snap.Cycles},
				{"Productive", fmt.Sprintf("%d (%s)", snap.ProductiveCycles, snap.Totals.Productive.Round(time.Second))},
				{"Unproductive", fmt.Sprintf("%d (%s)", snap.UnproductiveCycles, snap.Totals.Unproductive.Round(time.Second))},
				{"Unknown", snap.UnknownCycles},
				{"Active", snap.Totals.Active.Round(time.Second)},
				{"Breaks", snap.Breaks},
				{"Failures (sample/judge/notify)", fmt.Sprintf("%d/%d/%d", snap.SamplingFailures, snap.JudgeFailures, snap.PresentationFailures)},
				{"Avg judge latency", fmt.Sprintf("%.0fms", snap.AvgJudgeLatencyMs)},
			})
			for _, k := range sortedKeys(snap.Dispatches) {
				tw.AppendRow(table.Row{"Dispatched " + k, snap.Dispatches[k]})
			}
			for _, k := range sortedKeys(snap.Responses) {
				tw.AppendRow(table.Row{"Answered " + k, snap.Responses[k]})
			}
			tw.Render()
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize checks per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.HistoryPath()); errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no history at %s; has the monitor run?", cfg.HistoryPath())
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.DailyCounts(cmd.Context(), days)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(counts)
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Day", "Productive", "Unproductive", "Unknown", "Productive %"})
			var total history.DayCount
			for _, d := range counts {
				tw.AppendRow(table.Row{d.Day, d.Productive, d.Unproductive, d.Unknown, percent(d)})
				total.Productive += d.Productive
				total.Unproductive += d.Unproductive
				total.Unknown += d.Unknown
			}
			tw.AppendFooter(table.Row{"Total", total.Productive, total.Unproductive, total.Unknown, percent(total)})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to include (0 = all)")
	return cmd
}

func percent(d history.DayCount) string {
	if d.Total() == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", 100*float64(d.Productive)/float64(d.Total()))
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
