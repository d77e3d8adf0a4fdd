package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mountcheck/internal/cli/output"
	"mountcheck/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the probe results of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Outcome counts per probe across all runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryStats,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

var (
	historyLimit  int
	historyOutput string
	historyKeep   int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd, historyStatsCmd, historyPruneCmd)
	historyCmd.PersistentFlags().StringVarP(&historyOutput, "output", "o", "table", "Output format: table, json, yaml")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list (0 for all)")
	historyPruneCmd.Flags().IntVar(&historyKeep, "keep", 50, "Number of most recent runs to keep")
}

func openHistory() (*storage.History, error) {
	return storage.Open(settings.HistoryPath())
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(historyOutput)
	if err != nil {
		return err
	}
	h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	runs, err := h.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 && format == output.FormatTable {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs")
		return nil
	}
	return output.Print(cmd.OutOrStdout(), format, runsTable(runs), runs)
}

func runsTable(runs []*storage.Run) *output.TableData {
	table := output.NewTableData("ID", "Started", "Duration", "Passed", "Failed", "Errored", "Pending", "Leaked", "OK")
	for _, r := range runs {
		table.AddRow(
			r.ID,
			r.StartedAt.Format(time.DateTime),
			r.Duration.Round(time.Millisecond).String(),
			fmt.Sprint(r.Passed),
			fmt.Sprint(r.Failed),
			fmt.Sprint(r.Errored),
			fmt.Sprint(r.Pending),
			fmt.Sprint(len(r.Leaked)),
			yesNo(r.OK()),
		)
	}
	return table
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(historyOutput)
	if err != nil {
		return err
	}
	h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	run, err := h.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return output.Print(cmd.OutOrStdout(), format, nil, run)
	}

	out := cmd.OutOrStdout()
	pairs := [][2]string{
		{"Run", run.ID},
		{"Started", run.StartedAt.Format(time.DateTime)},
		{"Shared path", run.SharedPath},
		{"Helper", run.Helper},
	}
	if len(run.Leaked) > 0 {
		pairs = append(pairs, [2]string{"Leaked", strings.Join(run.Leaked, ", ")})
	}
	if run.TeardownError != "" {
		pairs = append(pairs, [2]string{"Teardown", run.TeardownError})
	}
	_ = output.SimpleTable(out, pairs)
	fmt.Fprintln(out)
	return output.PrintTable(out, resultsTable(run.Results))
}

func resultsTable(results []storage.Result) *output.TableData {
	table := output.NewTableData("Probe", "Status", "Duration", "Error")
	for _, r := range results {
		table.AddRow(r.Probe, r.Status, r.Duration.Round(time.Millisecond).String(), r.Error)
	}
	return table
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(historyOutput)
	if err != nil {
		return err
	}
	h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	stats, err := h.ProbeStats(cmd.Context())
	if err != nil {
		return err
	}
	table := output.NewTableData("Probe", "Passed", "Failed", "Errored")
	for _, s := range stats {
		table.AddRow(s.Probe, fmt.Sprint(s.Passed), fmt.Sprint(s.Failed), fmt.Sprint(s.Errored))
	}
	return output.Print(cmd.OutOrStdout(), format, table, stats)
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	h, err := openHistory()
	if err != nil {
		return err
	}
	defer h.Close()

	removed, err := h.Prune(cmd.Context(), historyKeep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
