package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/termcheck/internal/bridge"
	"github.com/roach88/termcheck/internal/simide"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Addr string
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve the simulated IDE over the automation bridge",
		Long: `Serve an in-memory IDE with a terminal, file manager and console
evaluator over the WebSocket automation bridge. Suites can then run against
it with --driver bridge, which exercises the same wire path as a real
in-page bridge.

Example:
  termcheck simulate --addr 127.0.0.1:8765 &
  termcheck run suites/terminal-sim.yaml --driver bridge --url ws://127.0.0.1:8765/ws`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8765", "listen address")

	return cmd
}

// newSimulateMux routes the bridge endpoint and a health check.
func newSimulateMux(ide *simide.IDE, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", bridge.NewHandler(ide, logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func runSimulate(opts *SimulateOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	ide := simide.New(simide.Options{Logger: logger})
	defer ide.Close()

	srv := &http.Server{
		Handler:           newSimulateMux(ide, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	endpoint := fmt.Sprintf("ws://%s/ws", ln.Addr())
	if err := f.Emit(map[string]string{"endpoint": endpoint}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Simulated IDE listening on %s\nPress Ctrl-C to stop.\n", endpoint)
		return err
	}); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down simulated IDE")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitCommandError, "shutdown failed", err)
	}
	return nil
}
