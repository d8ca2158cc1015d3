package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/pipeline"
	"github.com/curious-bigcat/snowflake-cove-agents-cortex-ai/internal/store"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past verification runs",
	Long: `History reads runs saved to the local database.
Runs are only recorded when store.enabled is true.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		runs, err := a.store.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tSTARTED\tSCORE\tCORRECTED\tQUESTION")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%v\t%s\n",
				r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04"),
				r.Consistent, r.Total, r.Corrected, truncate(r.Query, 60))
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		report, err := a.store.GetRun(cmd.Context(), args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("load run: %w", err)
		}

		renderer := pipeline.NewRenderer(cmd.OutOrStdout())
		if historyJSON {
			return renderer.WriteJSON(cmd.OutOrStdout(), report)
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), pipeline.Markdown(report))
		return err
	},
}

func openHistory() (*app, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	if a.store == nil {
		_ = a.Close()
		return nil, fmt.Errorf("run history is disabled (set store.enabled: true)")
	}
	return a, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list, 0 = all")
	historyShowCmd.Flags().BoolVar(&historyJSON, "json", false, "print the export document instead of Markdown")
}
