package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/termcheck/internal/report"
	"github.com/roach88/termcheck/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Latest   string // suite name; show its most recent run
	Report   string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show the scenario and step trace of a recorded run",
		Long: `Show a recorded run: every scenario with its executed steps, the
observed text of text steps and the failure reason of failed scenarios.

Examples:
  termcheck show --db runs.db 0192f1c4-...
  termcheck show --db runs.db --latest terminal
  termcheck show --db runs.db --latest terminal --report out/last.html`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runShow(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (required)")
	cmd.Flags().StringVar(&opts.Latest, "latest", "", "show the most recent run of this suite")
	cmd.Flags().StringVar(&opts.Report, "report", "", "also write the run as a report file (.md, .html or .json)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runShow(opts *ShowOptions, runID string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if (runID == "") == (opts.Latest == "") {
		msg := "specify exactly one of a run ID or --latest <suite>"
		_ = f.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	st, err := openHistory(f, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var run *store.Run
	if runID != "" {
		run, err = st.ReadRun(ctx, runID)
	} else {
		run, err = st.LatestRun(ctx, opts.Latest)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		_ = f.Error(ErrCodeRunNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		_ = f.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if opts.Report != "" {
		if err := report.WriteFile(opts.Report, run.Report); err != nil {
			_ = f.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write report", err)
		}
	}

	return f.Emit(run, func(w io.Writer) error {
		s := run.Summary
		fmt.Fprintf(w, "Run %s (%s)\n", s.ID, s.Suite)
		fmt.Fprintf(w, "Started %s", s.StartedAt.Local().Format("2006-01-02 15:04:05"))
		if s.Driver != "" {
			fmt.Fprintf(w, " with the %s driver", s.Driver)
		}
		if s.SuitePath != "" {
			fmt.Fprintf(w, " from %s", s.SuitePath)
		}
		fmt.Fprint(w, "\n\n")
		return report.Text(w, run.Report, true)
	})
}
