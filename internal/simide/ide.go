// Package simide is an in-process stand-in for the IDE's terminal panel.
//
// It renders the same data-id locators the browser exposes and evaluates
// console input with a small interpreter, so suites can be developed and
// the harness exercised without a browser. It is served remotely by
// "termcheck simulate" through the automation bridge.
package simide

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/termcheck/internal/harness"
)

// Locators rendered by the simulated IDE.
const (
	SelectorTerminalCli   = `*[data-id="terminalCli"]`
	SelectorTerminalInput = `*[data-id="terminalCliInput"]`
	SelectorJournal       = `*[data-id="terminalJournal"]`
	SelectorJournalLast   = `*[data-id="terminalJournal"] > div:last-child`
	SelectorClearConsole  = `#clearConsole`
	SelectorTerminalClear = `*[data-id="terminalClearConsole"]`
	SelectorAutoComplete  = `*[data-id="autoCompletePopUpAutoCompleteItem"]`
	SelectorUdappIcon     = `#icon-panel div[plugin="udapp"]`
	SelectorWeb3Mode      = `*[data-id="settingsWeb3Mode"]`
	SelectorModalOK       = `#modal-footer-ok`
	SelectorActiveFile    = `*[data-id="editorActiveFile"]`
	SelectorEditor        = `*[data-id="editorContent"]`
)

const (
	providerVM   = "vm"
	providerWeb3 = "web3"
)

// Options configures a simulated IDE.
type Options struct {
	// Files seeds the workspace. Defaults to DefaultFiles().
	Files map[string]string

	// Remote maps URLs to the content contentImport resolves for them.
	// Defaults to DefaultRemote().
	Remote map[string]string

	Logger *slog.Logger
}

// IDE is a simulated IDE session. It implements harness.Target and
// harness.Resetter. All methods are safe for concurrent use: scripts started
// with remix.execute keep writing to the journal in the background.
type IDE struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	journal   []string
	input     string
	files     map[string]string
	active    string
	udappOpen bool
	modalOpen bool
	provider  string
	closed    bool

	// gen invalidates output from scripts started before a reset.
	gen    uint64
	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	_ harness.Target   = (*IDE)(nil)
	_ harness.Resetter = (*IDE)(nil)
)

// New creates a fresh session.
func New(opts Options) *IDE {
	if opts.Files == nil {
		opts.Files = DefaultFiles()
	}
	if opts.Remote == nil {
		opts.Remote = DefaultRemote()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &IDE{opts: opts, logger: opts.Logger}
	s.bg, s.cancel = context.WithCancel(context.Background())
	s.resetLocked()
	return s
}

func (s *IDE) resetLocked() {
	s.journal = []string{WelcomeMessage}
	s.input = ""
	s.files = make(map[string]string, len(s.opts.Files))
	for k, v := range s.opts.Files {
		s.files[k] = v
	}
	s.active = ""
	s.udappOpen = false
	s.modalOpen = false
	s.provider = providerVM
	s.gen++
}

func (s *IDE) lost() error {
	return fmt.Errorf("simulated IDE closed: %w", harness.ErrConnectionLost)
}

// element returns the rendered text of selector and whether it is visible.
// Caller holds s.mu.
func (s *IDE) element(selector string) (string, bool) {
	switch selector {
	case SelectorTerminalCli, SelectorTerminalInput:
		return s.input, true
	case SelectorJournal:
		return strings.Join(s.journal, "\n"), true
	case SelectorJournalLast:
		if len(s.journal) == 0 {
			return "", false
		}
		return s.journal[len(s.journal)-1], true
	case SelectorClearConsole, SelectorTerminalClear, SelectorUdappIcon:
		return "", true
	case SelectorAutoComplete:
		if !strings.HasPrefix(s.input, "remix.") {
			return "", false
		}
		prefix := strings.TrimSpace(s.input)
		var items []string
		for _, c := range completions {
			if strings.HasPrefix(c, prefix) {
				items = append(items, c)
			}
		}
		return strings.Join(items, "\n"), true
	case SelectorWeb3Mode:
		return "Web3 Provider", s.udappOpen
	case SelectorModalOK:
		return "OK", s.modalOpen
	case SelectorActiveFile:
		return s.active, s.active != ""
	case SelectorEditor:
		if s.active == "" {
			return "", false
		}
		return s.files[s.active], true
	}
	return "", false
}

// Click implements harness.UI.
func (s *IDE) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.lost()
	}
	if _, ok := s.element(selector); !ok {
		return fmt.Errorf("click %s: %w", selector, harness.ErrElementNotFound)
	}

	switch selector {
	case SelectorClearConsole, SelectorTerminalClear:
		s.journal = nil
	case SelectorUdappIcon:
		s.udappOpen = true
	case SelectorWeb3Mode:
		s.modalOpen = true
	case SelectorModalOK:
		s.modalOpen = false
		s.provider = providerWeb3
	}
	s.logger.Debug("click", "selector", selector)
	return nil
}

// SendKeys implements harness.UI. Only the console input accepts text; a
// newline submits the line typed so far.
func (s *IDE) SendKeys(ctx context.Context, selector, text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.lost()
	}
	if selector != SelectorTerminalInput && selector != SelectorTerminalCli {
		_, ok := s.element(selector)
		s.mu.Unlock()
		if !ok {
			return fmt.Errorf("send_keys %s: %w", selector, harness.ErrElementNotFound)
		}
		return fmt.Errorf("send_keys %s: element does not accept input", selector)
	}

	var submit []string
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			s.input += text
			break
		}
		submit = append(submit, s.input+text[:i])
		s.input = ""
		text = text[i+1:]
	}
	s.mu.Unlock()

	for _, line := range submit {
		if err := s.ExecuteScript(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// WaitVisible implements harness.UI.
func (s *IDE) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := harness.Poll(ctx, timeout, 10*time.Millisecond, func(context.Context) (bool, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return false, s.lost()
		}
		_, ok := s.element(selector)
		return ok, nil
	})
	if err == harness.ErrPollTimeout {
		return fmt.Errorf("%s not visible after %s: %w", selector, timeout, harness.ErrElementNotFound)
	}
	return err
}

// Text implements harness.UI.
func (s *IDE) Text(_ context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", s.lost()
	}
	text, ok := s.element(selector)
	if !ok {
		return "", fmt.Errorf("%s: %w", selector, harness.ErrElementNotFound)
	}
	return text, nil
}

// ExecuteScript implements harness.Console. The input is echoed to the
// journal, evaluated, and the value of its last statement printed unless it
// is undefined. Input that does not parse is rejected without side effects.
func (s *IDE) ExecuteScript(ctx context.Context, code string) error {
	prog, err := parse(code)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.lost()
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: SyntaxError: %v", harness.ErrScriptRejected, err)
	}
	s.input = ""
	s.journal = append(s.journal, "> "+strings.TrimSpace(code))
	gen := s.gen
	s.mu.Unlock()

	s.logger.Debug("execute script", "code", code)

	v, err := newInterp(ctx, s, gen).run(prog)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.emit(gen, "Error: "+err.Error())
		return nil
	}
	if v != nil {
		s.emit(gen, formatValue(v))
	}
	return nil
}

// emit appends a journal entry unless the session was reset since the
// script producing it started.
func (s *IDE) emit(gen uint64, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.journal = append(s.journal, line)
}

// execute runs a workspace file in the background.
func (s *IDE) execute(path string, gen uint64) error {
	s.mu.Lock()
	content, ok := s.files[path]
	bg := s.bg
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("file not found: %s", path)
	}
	prog, err := parse(content)
	if err != nil {
		return fmt.Errorf("%s: SyntaxError: %v", path, err)
	}
	if bg.Err() != nil {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := newInterp(bg, s, gen).run(prog); err != nil && bg.Err() == nil {
			s.emit(gen, "Error: "+err.Error())
		}
	}()
	return nil
}

func (s *IDE) activeFile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *IDE) accounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider == providerWeb3 {
		return ProviderAccounts
	}
	return VMAccounts
}

// pluginCall serves remix.call(plugin, method, ...).
func (s *IDE) pluginCall(plugin, method string, args []value) (value, error) {
	name := plugin + "." + method
	switch name {
	case "fileManager.readFile":
		path, err := stringArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		content, ok := s.files[path]
		if !ok {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return content, nil

	case "fileManager.writeFile":
		path, err := stringArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		content, err := stringArg(name, args, 1)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.files[path] = content
		return nil, nil

	case "contentImport.resolveAndSave":
		url, err := stringArg(name, args, 0)
		if err != nil {
			return nil, err
		}
		target := ""
		if len(args) > 1 {
			if target, err = stringArg(name, args, 1); err != nil {
				return nil, err
			}
		}
		return s.resolveAndSave(url, target)
	}
	return nil, fmt.Errorf("plugin call %s is not supported", name)
}

// resolveAndSave resolves a workspace path or a known GitHub URL. Remote
// content is saved under .deps/, either at the mirrored GitHub path or at
// .deps/<target> when a target is given.
func (s *IDE) resolveAndSave(url, target string) (value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if content, ok := s.files[url]; ok {
		return content, nil
	}

	const github = "https://github.com/"
	if !strings.HasPrefix(url, github) {
		return nil, fmt.Errorf("not found %s", url)
	}
	content, ok := s.opts.Remote[url]
	if !ok {
		return nil, fmt.Errorf("cannot resolve %s", url)
	}

	dest := ".deps/" + target
	if target == "" {
		// owner/repo/blob/<branch>/path -> .deps/github/owner/repo/path
		parts := strings.SplitN(strings.TrimPrefix(url, github), "/", 5)
		if len(parts) < 5 || parts[2] != "blob" {
			return nil, fmt.Errorf("unsupported GitHub URL %s", url)
		}
		dest = ".deps/github/" + parts[0] + "/" + parts[1] + "/" + parts[4]
	}
	s.files[dest] = content
	return content, nil
}

// AddFile implements harness.Files. Like the file explorer, adding a file
// also opens it.
func (s *IDE) AddFile(_ context.Context, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.lost()
	}
	s.files[path] = content
	s.active = path
	return nil
}

// OpenFile implements harness.Files.
func (s *IDE) OpenFile(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.lost()
	}
	if _, ok := s.files[path]; !ok {
		return fmt.Errorf("open %s: %w", path, harness.ErrElementNotFound)
	}
	s.active = path
	return nil
}

// Reset stops background scripts and restores the initial state.
func (s *IDE) Reset(context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.lost()
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bg, s.cancel = context.WithCancel(context.Background())
	s.resetLocked()
	return nil
}

// Close ends the session. Every later call reports a lost connection.
func (s *IDE) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// Journal returns a copy of the journal entries.
func (s *IDE) Journal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.journal...)
}
