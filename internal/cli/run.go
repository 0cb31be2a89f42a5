package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/termcheck/internal/harness"
	"github.com/roach88/termcheck/internal/report"
	"github.com/roach88/termcheck/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Driver       string
	URL          string
	Headless     bool
	ConsoleInput string
	Timeout      time.Duration
	WaitTimeout  time.Duration
	PollInterval time.Duration
	Filter       string
	Database     string
	Report       string
	Watch        bool

	// runIDs overrides run ID generation (for testing).
	runIDs harness.IDGenerator

	// debounce is the quiet period before a watched change triggers a run.
	debounce time.Duration
}

// runOutput is the JSON payload of the run command.
type runOutput struct {
	Report   *harness.Report   `json:"report"`
	Changes  []report.Change   `json:"changes,omitempty"`
	Warnings []harness.Warning `json:"warnings,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite>",
		Short: "Run a scenario suite against a target",
		Long: `Run every scenario of a suite against one target session.

Scenarios run in order and share the session. A failing scenario stops at
its first failing step and the run moves on to the next scenario. A lost
connection to the target stops the whole run.

Flags override the suite's target block when set.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed, or the run was aborted
  2 - Command error or the target connection was lost

Examples:
  termcheck run suites/terminal.yaml --url http://127.0.0.1:8080
  termcheck run suites/terminal-sim.yaml --driver sim --filter "*console*"
  termcheck run suites/terminal.yaml --driver bridge --url ws://127.0.0.1:8765/ws
  termcheck run suites/terminal.yaml --db runs.db --report out/terminal.html
  termcheck run suites/terminal-sim.yaml --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuiteCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "automation driver (browser|bridge|sim)")
	cmd.Flags().StringVar(&opts.URL, "url", "", "IDE page URL (browser) or WebSocket endpoint (bridge)")
	cmd.Flags().BoolVar(&opts.Headless, "headless", true, "run the browser without a window")
	cmd.Flags().StringVar(&opts.ConsoleInput, "console-input", "", "selector execute_script types into (browser)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "bound for the whole run (0 = suite setting)")
	cmd.Flags().DurationVar(&opts.WaitTimeout, "wait-timeout", 0, "default timeout for wait steps")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", 0, "delay between wait_text checks")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios matching a glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in a SQLite history database")
	cmd.Flags().StringVar(&opts.Report, "report", "", "write a report file (.md, .html or .json)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-run whenever the suite file changes")

	return cmd
}

func runSuiteCommand(opts *RunOptions, suitePath string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, aborting run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	changed := cmd.Flags().Changed

	if !opts.Watch {
		return executeSuite(ctx, opts, suitePath, changed, f, logger)
	}

	// Errors are reported per run; watching continues until interrupted.
	_ = executeSuite(ctx, opts, suitePath, changed, f, logger)
	w := &suiteWatcher{path: suitePath, debounce: opts.debounce, logger: logger}
	err := w.Run(ctx, func(ctx context.Context) {
		fmt.Fprintf(f.GetErrWriter(), "\n%s changed, re-running\n\n", suitePath)
		_ = executeSuite(ctx, opts, suitePath, changed, f, logger)
	})
	if err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	return nil
}

// executeSuite loads, runs, records and reports one suite. The returned
// error carries the exit code; its details have already been written.
func executeSuite(ctx context.Context, opts *RunOptions, suitePath string, changed func(string) bool, f *OutputFormatter, logger *slog.Logger) error {
	suite, err := loadSuite(suitePath)
	if err != nil {
		return reportLoadError(f, err)
	}

	suite, err = suite.Filter(opts.Filter)
	if err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}
	if len(suite.Scenarios) == 0 {
		msg := fmt.Sprintf("no scenarios in %s match %q", suitePath, opts.Filter)
		_ = f.Error(ErrCodeNoFiles, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	warnings := harness.Lint(suite)
	for _, w := range warnings {
		logger.Warn("suite lint", "warning", w.String())
	}

	if changed("timeout") {
		suite.Timeout = harness.Duration(opts.Timeout)
	}
	ts := resolveSettings(suite, opts, changed)
	f.VerboseLog("Running %d scenario(s) from %s with the %s driver", len(suite.Scenarios), suitePath, ts.Driver)

	target, err := openTarget(ctx, ts, logger)
	if err != nil {
		_ = f.Error(ErrCodeTarget, err.Error(), map[string]string{"driver": ts.Driver, "url": ts.URL})
		return WrapExitError(ExitCommandError, "failed to open target", err)
	}
	defer func() {
		if cerr := target.Close(); cerr != nil {
			logger.Warn("error closing target", "error", cerr)
		}
	}()

	runner := harness.NewRunner(target, harness.Options{
		WaitTimeout:  ts.WaitTimeout,
		PollInterval: ts.PollInterval,
		Logger:       logger,
		RunIDs:       opts.runIDs,
	})
	rep, runErr := runner.Run(ctx, suite)

	// Recording and reporting still happen after an interrupt.
	wctx := context.WithoutCancel(ctx)

	var changes []report.Change
	if opts.Database != "" {
		changes, err = recordRun(wctx, opts.Database, rep, store.RunMeta{SuitePath: suitePath, Driver: ts.Driver})
		if err != nil {
			_ = f.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}

	if opts.Report != "" {
		if err := report.WriteFile(opts.Report, rep); err != nil {
			_ = f.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write report", err)
		}
		f.VerboseLog("Report written to %s", opts.Report)
	}

	if err := outputRun(f, runOutput{Report: rep, Changes: changes, Warnings: warnings}, runErr); err != nil {
		return err
	}
	return runExitError(rep, runErr)
}

// resolveSettings layers changed flags over the suite's target block.
func resolveSettings(suite *harness.Suite, opts *RunOptions, changed func(string) bool) targetSettings {
	ts := targetSettings{
		Driver:       suite.Target.Driver,
		URL:          suite.Target.URL,
		Headless:     true,
		ConsoleInput: suite.Target.ConsoleInput,
		WaitTimeout:  suite.Target.WaitTimeout.Std(),
		PollInterval: suite.Target.PollInterval.Std(),
	}
	if suite.Target.Headless != nil {
		ts.Headless = *suite.Target.Headless
	}

	if changed("driver") {
		ts.Driver = opts.Driver
	}
	if changed("url") {
		ts.URL = opts.URL
	}
	if changed("headless") {
		ts.Headless = opts.Headless
	}
	if changed("console-input") {
		ts.ConsoleInput = opts.ConsoleInput
	}
	if changed("wait-timeout") {
		ts.WaitTimeout = opts.WaitTimeout
	}
	if changed("poll-interval") {
		ts.PollInterval = opts.PollInterval
	}

	if ts.Driver == "" {
		ts.Driver = harness.DriverBrowser
	}
	return ts
}

// recordRun stores the report and returns status changes relative to the
// suite's previous run.
func recordRun(ctx context.Context, dbPath string, rep *harness.Report, meta store.RunMeta) ([]report.Change, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	var changes []report.Change
	prev, err := st.LatestRun(ctx, rep.Suite)
	switch {
	case err == nil:
		changes = report.Compare(prev.Report, rep)
	case !errors.Is(err, store.ErrRunNotFound):
		return nil, err
	}

	if err := st.WriteReport(ctx, rep, meta); err != nil {
		return nil, err
	}
	return changes, nil
}

func outputRun(f *OutputFormatter, out runOutput, runErr error) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: out, RunID: out.Report.RunID}
		if code, msg := runErrorCode(out.Report, runErr); code != "" {
			resp.Status = "error"
			resp.Error = &CLIError{Code: code, Message: msg}
		}
		return f.encode(resp)
	}

	if err := report.Text(f.Writer, out.Report, f.Verbose); err != nil {
		return err
	}
	if len(out.Changes) > 0 {
		fmt.Fprintln(f.Writer, "\nChanges since the previous run:")
		for _, c := range out.Changes {
			suffix := ""
			if c.Regression() {
				suffix = " (regression)"
			}
			fmt.Fprintf(f.Writer, "  %s%s\n", c, suffix)
		}
	}
	return nil
}

func runErrorCode(rep *harness.Report, runErr error) (string, string) {
	switch {
	case runErr != nil && harness.IsConnectionLost(runErr):
		return ErrCodeRunStopped, runErr.Error()
	case runErr != nil:
		return ErrCodeRunAborted, runErr.Error()
	case !rep.Pass():
		return ErrCodeScenarioFail, fmt.Sprintf("%d of %d scenarios failed", rep.Failed, rep.Total())
	}
	return "", ""
}

// runExitError maps a run outcome to the command's exit code.
func runExitError(rep *harness.Report, runErr error) error {
	code, msg := runErrorCode(rep, runErr)
	switch code {
	case "":
		return nil
	case ErrCodeRunStopped:
		return WrapExitError(ExitCommandError, "run stopped", runErr)
	case ErrCodeRunAborted:
		return WrapExitError(ExitFailure, "run aborted", runErr)
	default:
		return NewExitError(ExitFailure, msg)
	}
}

func reportLoadError(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		_ = f.Error(le.Code, le.Message, le.Path)
	} else {
		_ = f.Error(ErrCodeLoadFailed, err.Error(), nil)
	}
	return WrapExitError(ExitCommandError, "failed to load suite", err)
}

// newLogger returns the stderr logger commands hand to the runner and
// drivers: warnings only, or everything with --verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
