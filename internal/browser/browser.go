// Package browser drives the IDE in a real Chrome through the DevTools
// protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/goccy/go-json"

	"github.com/roach88/termcheck/internal/harness"
)

// DefaultConsoleInput is the locator execute_script types into.
const DefaultConsoleInput = `*[data-id="terminalCliInput"]`

// Default file hooks. {{path}} and {{content}} are replaced with JSON string
// literals before evaluation; the expression may return a promise.
const (
	DefaultAddFileJS  = `remix.call('fileManager', 'writeFile', {{path}}, {{content}}).then(() => remix.call('fileManager', 'open', {{path}}))`
	DefaultOpenFileJS = `remix.call('fileManager', 'open', {{path}})`
)

// Config describes the browser session.
type Config struct {
	// URL of the IDE page.
	URL string

	// Headless hides the browser window.
	Headless bool

	// ExecPath overrides the Chrome binary. Empty means autodetect.
	ExecPath string

	// ConsoleInput is where execute_script types. Defaults to
	// DefaultConsoleInput.
	ConsoleInput string

	// AddFileJS and OpenFileJS are the in-page file hooks.
	AddFileJS  string
	OpenFileJS string

	// LoadTimeout bounds the initial navigation and every Reset.
	LoadTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.ConsoleInput == "" {
		c.ConsoleInput = DefaultConsoleInput
	}
	if c.AddFileJS == "" {
		c.AddFileJS = DefaultAddFileJS
	}
	if c.OpenFileJS == "" {
		c.OpenFileJS = DefaultOpenFileJS
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Browser is a harness.Target backed by one Chrome tab.
type Browser struct {
	cfg    Config
	logger *slog.Logger

	ctx         context.Context // tab context; done when the browser is gone
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

var (
	_ harness.Target   = (*Browser)(nil)
	_ harness.Resetter = (*Browser)(nil)
)

// allocatorOptions returns the Chrome flags for cfg.
func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1280, 900),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Open starts Chrome and loads cfg.URL. The caller owns the session and
// must Close it.
func Open(ctx context.Context, cfg Config) (*Browser, error) {
	cfg.setDefaults()
	if cfg.URL == "" {
		return nil, errors.New("browser: url is required")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	logf := func(format string, args ...any) {
		cfg.Logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logf), chromedp.WithErrorf(logf))

	b := &Browser{
		cfg:         cfg,
		logger:      cfg.Logger,
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}
	if err := b.load(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("browser: failed to load %s: %w", cfg.URL, err)
	}
	b.logger.Info("browser session opened", "url", cfg.URL, "headless", cfg.Headless)
	return b, nil
}

func (b *Browser) load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.LoadTimeout)
	defer cancel()
	rctx, done := b.runCtx(ctx)
	defer done()
	return chromedp.Run(rctx, chromedp.Navigate(b.cfg.URL))
}

// runCtx derives a context from the tab that also ends with ctx.
func (b *Browser) runCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	rctx, cancel := context.WithCancel(b.ctx)
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		rctx, cancelDL = context.WithDeadline(rctx, dl)
		prev := cancel
		cancel = func() { cancelDL(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return rctx, func() { stop(); cancel() }
}

// run executes actions and maps the failure onto the harness sentinels.
func (b *Browser) run(ctx context.Context, what string, actions ...chromedp.Action) error {
	rctx, done := b.runCtx(ctx)
	defer done()
	return b.mapError(ctx, what, chromedp.Run(rctx, actions...))
}

func (b *Browser) mapError(ctx context.Context, what string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case b.ctx.Err() != nil, errors.Is(err, chromedp.ErrChannelClosed), errors.Is(err, chromedp.ErrInvalidContext):
		return fmt.Errorf("%s: browser closed: %w", what, harness.ErrConnectionLost)
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case isStale(err):
		return fmt.Errorf("%s: %v: %w", what, err, harness.ErrStaleElement)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// isStale matches the DevTools errors for nodes removed mid-operation.
func isStale(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "No node with given id") ||
		strings.Contains(msg, "Could not find node with given id") ||
		strings.Contains(msg, "Node is detached")
}

// Click implements harness.UI.
func (b *Browser) Click(ctx context.Context, selector string) error {
	return b.run(ctx, "click "+selector, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

// SendKeys implements harness.UI.
func (b *Browser) SendKeys(ctx context.Context, selector, text string) error {
	return b.run(ctx, "send_keys "+selector, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// WaitVisible implements harness.UI.
func (b *Browser) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	wctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := b.run(wctx, "wait_visible "+selector, chromedp.WaitVisible(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s not visible after %s: %w", selector, timeout, harness.ErrElementNotFound)
	}
	return err
}

type textResult struct {
	Found bool   `json:"found"`
	Text  string `json:"text"`
}

// textExpr returns the JS reading the innerText of the first match.
func textExpr(selector string) string {
	q, _ := json.Marshal(selector)
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el === null ? {found: false, text: ""} : {found: true, text: el.innerText}; })()`, q)
}

// Text implements harness.UI.
func (b *Browser) Text(ctx context.Context, selector string) (string, error) {
	var res textResult
	if err := b.run(ctx, "text "+selector, chromedp.Evaluate(textExpr(selector), &res)); err != nil {
		return "", err
	}
	if !res.Found {
		return "", fmt.Errorf("text %s: %w", selector, harness.ErrElementNotFound)
	}
	return res.Text, nil
}

// ExecuteScript implements harness.Console by typing into the console
// input and pressing Enter.
func (b *Browser) ExecuteScript(ctx context.Context, code string) error {
	sel := b.cfg.ConsoleInput
	return b.run(ctx, "execute_script",
		chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SendKeys(sel, code, chromedp.ByQuery),
		chromedp.SendKeys(sel, kb.Enter, chromedp.ByQuery),
	)
}

// renderHook fills a file hook template.
func renderHook(tmpl, path, content string) string {
	p, _ := json.Marshal(path)
	c, _ := json.Marshal(content)
	return strings.NewReplacer("{{path}}", string(p), "{{content}}", string(c)).Replace(tmpl)
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (b *Browser) evalHook(ctx context.Context, what, expr string) error {
	return b.run(ctx, what, chromedp.Evaluate(expr, nil, awaitPromise))
}

// AddFile implements harness.Files through the AddFileJS hook.
func (b *Browser) AddFile(ctx context.Context, path, content string) error {
	return b.evalHook(ctx, "add_file "+path, renderHook(b.cfg.AddFileJS, path, content))
}

// OpenFile implements harness.Files through the OpenFileJS hook. A
// rejected promise means the file does not exist.
func (b *Browser) OpenFile(ctx context.Context, path string) error {
	err := b.evalHook(ctx, "open_file "+path, renderHook(b.cfg.OpenFileJS, path, ""))
	var exc *runtime.ExceptionDetails
	if errors.As(err, &exc) {
		return fmt.Errorf("open_file %s: %v: %w", path, exc, harness.ErrElementNotFound)
	}
	return err
}

// Reset reloads the IDE page.
func (b *Browser) Reset(ctx context.Context) error {
	return b.mapError(ctx, "reset", b.load(ctx))
}

// Close shuts the tab and the browser process down.
func (b *Browser) Close() error {
	b.cancel()
	b.allocCancel()
	b.logger.Info("browser session closed")
	return nil
}
