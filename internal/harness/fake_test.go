package harness

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeTarget is an in-memory Target. An element is visible when it has an
// entry in texts.
type fakeTarget struct {
	mu      sync.Mutex
	texts   map[string]string
	scripts map[string]func(f *fakeTarget) error
	clicks  map[string]func(f *fakeTarget)
	errs    map[string]error
	slow    map[string]bool
	files   map[string]string
	calls   []string
	resets  int
	closed  bool
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		texts:   map[string]string{},
		scripts: map[string]func(*fakeTarget) error{},
		clicks:  map[string]func(*fakeTarget){},
		errs:    map[string]error{},
		slow:    map[string]bool{},
		files:   map[string]string{},
	}
}

// set makes selector visible with text. Callers from script and click
// hooks already hold the lock.
func (f *fakeTarget) set(selector, text string) {
	f.texts[selector] = text
}

// later makes selector visible with text after d.
func (f *fakeTarget) later(selector, text string, d time.Duration) {
	time.AfterFunc(d, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.texts[selector] = text
	})
}

func (f *fakeTarget) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeTarget) forced(key string) error {
	if f.closed {
		return fmt.Errorf("target closed: %w", ErrConnectionLost)
	}
	return f.errs[key]
}

func (f *fakeTarget) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("click %s", selector)
	if err := f.forced(selector); err != nil {
		return err
	}
	if _, ok := f.texts[selector]; !ok {
		return fmt.Errorf("click %s: %w", selector, ErrElementNotFound)
	}
	if fn := f.clicks[selector]; fn != nil {
		fn(f)
	}
	return nil
}

func (f *fakeTarget) SendKeys(_ context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("send_keys %s %s", selector, text)
	if err := f.forced(selector); err != nil {
		return err
	}
	if _, ok := f.texts[selector]; !ok {
		return fmt.Errorf("send_keys %s: %w", selector, ErrElementNotFound)
	}
	f.texts[selector] += text
	return nil
}

func (f *fakeTarget) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := Poll(ctx, timeout, 5*time.Millisecond, func(context.Context) (bool, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if err := f.forced(selector); err != nil {
			return false, err
		}
		_, ok := f.texts[selector]
		return ok, nil
	})
	if err == ErrPollTimeout {
		return fmt.Errorf("%s not visible after %s: %w", selector, timeout, ErrElementNotFound)
	}
	return err
}

func (f *fakeTarget) Text(_ context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced(selector); err != nil {
		return "", err
	}
	text, ok := f.texts[selector]
	if !ok {
		return "", fmt.Errorf("%s: %w", selector, ErrElementNotFound)
	}
	return text, nil
}

func (f *fakeTarget) ExecuteScript(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("execute %s", code)
	if f.slow[code] {
		// Never finishes; the caller's deadline decides.
		f.mu.Unlock()
		<-ctx.Done()
		f.mu.Lock()
		return ctx.Err()
	}
	if err := f.forced(code); err != nil {
		return err
	}
	fn, ok := f.scripts[code]
	if !ok {
		return fmt.Errorf("cannot evaluate %q: %w", code, ErrScriptRejected)
	}
	return fn(f)
}

func (f *fakeTarget) AddFile(_ context.Context, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced(path); err != nil {
		return err
	}
	f.files[path] = content
	return nil
}

func (f *fakeTarget) OpenFile(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced(path); err != nil {
		return err
	}
	if _, ok := f.files[path]; !ok {
		return fmt.Errorf("open %s: %w", path, ErrElementNotFound)
	}
	f.texts["#editor"] = f.files[path]
	return nil
}

func (f *fakeTarget) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.forced("reset"); err != nil {
		return err
	}
	f.resets++
	return nil
}

func (f *fakeTarget) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// terminalFake returns a fake with a console input, a journal and a clear
// button wired the way the IDE terminal behaves.
func terminalFake() *fakeTarget {
	f := newFakeTarget()
	f.set("#cli", "")
	f.set("#journal", "Welcome")
	f.set("#clear", "")
	f.clicks["#clear"] = func(f *fakeTarget) { f.texts["#journal"] = "" }
	f.scripts["1 + 1"] = func(f *fakeTarget) error {
		f.texts["#journal"] = "2"
		return nil
	}
	f.scripts["console.log('hi')"] = func(f *fakeTarget) error {
		f.texts["#journal"] = "hi"
		return nil
	}
	return f
}
