package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/termcheck/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Suite    string
	Limit    int
	Keep     int
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Runs   []store.RunSummary `json:"runs"`
	Pruned int64              `json:"pruned,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded with run --db, newest first.

Examples:
  termcheck history --db runs.db
  termcheck history --db runs.db --suite terminal --limit 5
  termcheck history --db runs.db --keep 50`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (required)")
	cmd.Flags().StringVar(&opts.Suite, "suite", "", "only list runs of this suite")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 = all)")
	cmd.Flags().IntVar(&opts.Keep, "keep", 0, "delete all but the newest N runs of each suite first")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openHistory(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var result HistoryResult
	if cmd.Flags().Changed("keep") {
		result.Pruned, err = st.Prune(ctx, opts.Keep)
		if err != nil {
			_ = f.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to prune runs", err)
		}
		f.VerboseLog("Pruned %d run(s)", result.Pruned)
	}

	result.Runs, err = st.ListRuns(ctx, opts.Suite, opts.Limit)
	if err != nil {
		_ = f.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	return f.Emit(result, func(w io.Writer) error {
		return writeHistoryText(w, result)
	})
}

// openHistory opens an existing history database. Unlike run --db it never
// creates one.
func openHistory(f *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		msg := fmt.Sprintf("database not found: %s", path)
		_ = f.Error(ErrCodeNotFound, msg, nil)
		return nil, NewExitError(ExitCommandError, msg)
	}
	st, err := store.Open(path)
	if err != nil {
		_ = f.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func writeHistoryText(w io.Writer, result HistoryResult) error {
	if result.Pruned > 0 {
		fmt.Fprintf(w, "Pruned %d run(s).\n\n", result.Pruned)
	}
	if len(result.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSUITE\tSTARTED\tDURATION\tPASSED\tFAILED\tSKIPPED\tDRIVER")
	for _, r := range result.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID,
			r.Suite,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Passed, r.Failed, r.Skipped,
			r.Driver,
		)
	}
	return tw.Flush()
}
