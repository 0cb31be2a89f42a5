package harness

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned by Poll when the condition never held.
var ErrPollTimeout = errors.New("condition not met before timeout")

// DefaultPollInterval is used when no interval is configured.
const DefaultPollInterval = 100 * time.Millisecond

// Condition is evaluated repeatedly by Poll. Returning an error stops
// polling immediately.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates cond every interval until it returns true, it returns an
// error, timeout elapses (ErrPollTimeout) or ctx is done (ctx.Err()).
// The condition is always evaluated at least once.
//
// Poll replaces fixed pauses: a step waits exactly as long as the target
// needs, up to a bound.
func Poll(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	pctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(pctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pctx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrPollTimeout
		case <-ticker.C:
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
