package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/termcheck/internal/harness"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{URL: "http://127.0.0.1:8080"}
	cfg.setDefaults()

	assert.Equal(t, DefaultConsoleInput, cfg.ConsoleInput)
	assert.Equal(t, DefaultAddFileJS, cfg.AddFileJS)
	assert.Equal(t, DefaultOpenFileJS, cfg.OpenFileJS)
	assert.Equal(t, time.Minute, cfg.LoadTimeout)
	assert.NotNil(t, cfg.Logger)
}

func TestOpen_RequiresURL(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
}

func TestAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)
	assert.Len(t, allocatorOptions(Config{Headless: true}), base+2)
	assert.Len(t, allocatorOptions(Config{ExecPath: "/usr/bin/chromium"}), base+3)
}

func TestRenderHook(t *testing.T) {
	got := renderHook(DefaultAddFileJS, "scripts/a.js", "console.log('a')\n\"q\"")
	assert.Equal(t,
		`remix.call('fileManager', 'writeFile', "scripts/a.js", "console.log('a')\n\"q\"").then(() => remix.call('fileManager', 'open', "scripts/a.js"))`,
		got)

	assert.Equal(t, `remix.call('fileManager', 'open', "x.sol")`, renderHook(DefaultOpenFileJS, "x.sol", ""))
}

func TestTextExpr_QuotesSelector(t *testing.T) {
	expr := textExpr(`*[data-id="terminalJournal"] > div:last-child`)
	assert.Contains(t, expr, `document.querySelector("*[data-id=\"terminalJournal\"] > div:last-child")`)
}

func TestMapError(t *testing.T) {
	tabCtx, cancelTab := context.WithCancel(context.Background())
	defer cancelTab()
	b := &Browser{ctx: tabCtx}
	live := context.Background()

	assert.NoError(t, b.mapError(live, "x", nil))
	// Step timeouts pass through; the runner classifies them by action.
	timedOut := b.mapError(live, "execute_script", context.DeadlineExceeded)
	assert.ErrorIs(t, timedOut, context.DeadlineExceeded)
	assert.NotErrorIs(t, timedOut, harness.ErrElementNotFound)
	assert.ErrorIs(t, b.mapError(live, "text #a", errors.New("No node with given id found (-32000)")), harness.ErrStaleElement)
	assert.ErrorIs(t, b.mapError(live, "x", chromedp.ErrChannelClosed), harness.ErrConnectionLost)

	opaque := b.mapError(live, "x", errors.New("boom"))
	assert.NotErrorIs(t, opaque, harness.ErrElementNotFound)
	assert.Equal(t, "x: boom", opaque.Error())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, b.mapError(cancelled, "x", fmt.Errorf("wrapped: %w", context.Canceled)), context.Canceled)

	cancelTab()
	assert.ErrorIs(t, b.mapError(live, "x", errors.New("anything")), harness.ErrConnectionLost)
}

func TestRunCtx_EndsWithCaller(t *testing.T) {
	b := &Browser{ctx: context.Background()}

	caller, cancel := context.WithCancel(context.Background())
	rctx, done := b.runCtx(caller)
	defer done()

	cancel()
	select {
	case <-rctx.Done():
	case <-time.After(time.Second):
		t.Fatal("run context not cancelled with caller")
	}

	deadline, cancelDL := context.WithTimeout(context.Background(), time.Hour)
	defer cancelDL()
	rctx2, done2 := b.runCtx(deadline)
	defer done2()
	dl, ok := rctx2.Deadline()
	require.True(t, ok)
	want, _ := deadline.Deadline()
	assert.Equal(t, want, dl)
}

// TestBrowser_Live runs against a real IDE when TERMCHECK_BROWSER_URL is set.
func TestBrowser_Live(t *testing.T) {
	url := os.Getenv("TERMCHECK_BROWSER_URL")
	if url == "" {
		t.Skip("TERMCHECK_BROWSER_URL not set")
	}

	b, err := Open(context.Background(), Config{URL: url, Headless: true})
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.WaitVisible(ctx, `*[data-id="terminalCli"]`, 30*time.Second))
	require.NoError(t, b.ExecuteScript(ctx, "console.log(1 + 1)"))
}
