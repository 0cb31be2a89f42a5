package harness

import (
	"context"
	"time"
)

// UI drives the target's rendered interface.
type UI interface {
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// SendKeys types text into the element matching selector.
	SendKeys(ctx context.Context, selector, text string) error

	// WaitVisible blocks until the element is visible or timeout elapses.
	// A timeout is reported as ErrElementNotFound.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// Text returns the rendered text of the element. It does not wait:
	// a missing element is ErrElementNotFound.
	Text(ctx context.Context, selector string) (string, error)
}

// Console is the target's embedded scripting console.
type Console interface {
	// ExecuteScript submits code for evaluation. The result is not
	// returned; it is observed through console text.
	ExecuteScript(ctx context.Context, code string) error
}

// Files is the target's file manager.
type Files interface {
	AddFile(ctx context.Context, path, content string) error
	OpenFile(ctx context.Context, path string) error
}

// Target is a running application session under test.
type Target interface {
	UI
	Console
	Files

	// Close tears the session down.
	Close() error
}

// Resetter is implemented by targets that can return to a fresh state
// without a new session.
type Resetter interface {
	Reset(ctx context.Context) error
}
