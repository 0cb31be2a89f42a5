package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/termcheck/internal/bridge"
	"github.com/roach88/termcheck/internal/browser"
	"github.com/roach88/termcheck/internal/harness"
	"github.com/roach88/termcheck/internal/simide"
)

// targetSettings is the effective target configuration after command-line
// flags are layered over the suite's target block.
type targetSettings struct {
	Driver       string
	URL          string
	Headless     bool
	ConsoleInput string
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// openTarget starts a session with the configured driver. The caller must
// Close the returned target.
func openTarget(ctx context.Context, ts targetSettings, logger *slog.Logger) (harness.Target, error) {
	switch ts.Driver {
	case harness.DriverSim:
		return simide.New(simide.Options{Logger: logger}), nil

	case harness.DriverBridge:
		if ts.URL == "" {
			return nil, fmt.Errorf("bridge driver requires a url (ws://host:port/ws)")
		}
		c, err := bridge.Dial(ctx, ts.URL)
		if err != nil {
			return nil, err
		}
		return c, nil

	case harness.DriverBrowser:
		b, err := browser.Open(ctx, browser.Config{
			URL:          ts.URL,
			Headless:     ts.Headless,
			ConsoleInput: ts.ConsoleInput,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return b, nil

	default:
		return nil, fmt.Errorf("unknown driver %q (want %s, %s or %s)",
			ts.Driver, harness.DriverBrowser, harness.DriverBridge, harness.DriverSim)
	}
}
