package harness

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ActionKind is the tag of a scenario step.
type ActionKind string

// Action kinds. The YAML key of a step is its kind.
const (
	ActionClick              ActionKind = "click"
	ActionSendKeys           ActionKind = "send_keys"
	ActionExecuteScript      ActionKind = "execute_script"
	ActionWaitVisible        ActionKind = "wait_visible"
	ActionAssertVisible      ActionKind = "assert_visible"
	ActionAssertTextEquals   ActionKind = "assert_text_equals"
	ActionAssertTextContains ActionKind = "assert_text_contains"
	ActionWaitTextEquals     ActionKind = "wait_text_equals"
	ActionWaitTextContains   ActionKind = "wait_text_contains"
	ActionPause              ActionKind = "pause"
	ActionOpenFile           ActionKind = "open_file"
	ActionAddFile            ActionKind = "add_file"
)

// ActionReset tags the session reset that precedes a scenario when the
// suite sets reset_between. It is not a step and has no YAML key.
const ActionReset ActionKind = "reset"

// locates reports whether a step's main work is finding an element, so
// that running out of time means the element never showed up.
func (k ActionKind) locates() bool {
	switch k {
	case ActionClick, ActionSendKeys, ActionWaitVisible, ActionAssertVisible,
		ActionAssertTextEquals, ActionAssertTextContains,
		ActionWaitTextEquals, ActionWaitTextContains:
		return true
	}
	return false
}

// actionKeys lists the mapping keys each action accepts.
var actionKeys = map[ActionKind][]string{
	ActionClick:              {"selector"},
	ActionSendKeys:           {"selector", "text"},
	ActionExecuteScript:      {"code"},
	ActionWaitVisible:        {"selector", "timeout"},
	ActionAssertVisible:      {"selector", "timeout"},
	ActionAssertTextEquals:   {"selector", "expected"},
	ActionAssertTextContains: {"selector", "substring"},
	ActionWaitTextEquals:     {"selector", "expected", "timeout"},
	ActionWaitTextContains:   {"selector", "substring", "timeout"},
	ActionOpenFile:           {"path"},
	ActionAddFile:            {"path", "content", "content_file"},
}

// scalarKey is the field a scalar shorthand fills, e.g. `click: "#btn"`.
var scalarKey = map[ActionKind]string{
	ActionClick:         "selector",
	ActionExecuteScript: "code",
	ActionWaitVisible:   "selector",
	ActionAssertVisible: "selector",
	ActionOpenFile:      "path",
}

// Valid reports whether k is a known action.
func (k ActionKind) Valid() bool {
	if k == ActionPause {
		return true
	}
	_, ok := actionKeys[k]
	return ok
}

// Step is one action of a scenario.
// Only the fields relevant to Kind are set.
type Step struct {
	Kind ActionKind

	// Selector is the UI locator (click, send_keys, wait_*, assert_*).
	Selector string

	// Text is the input typed by send_keys.
	Text string

	// Code is the console input submitted by execute_script.
	Code string

	// Expected is the full text (equals) or substring (contains) to match.
	Expected string

	// Timeout bounds wait_* and assert_visible. Zero means the runner default.
	Timeout time.Duration

	// Duration is the fixed delay of a pause step.
	Duration time.Duration

	// Path is the logical resource path (open_file, add_file).
	Path string

	// Content is the file body for add_file.
	Content string

	// ContentFile names a file whose body becomes Content. Resolved
	// relative to the suite file when loading.
	ContentFile string
}

// Target returns the locator or resource path the step acts on.
func (s Step) Target() string {
	switch s.Kind {
	case ActionOpenFile, ActionAddFile:
		return s.Path
	case ActionExecuteScript, ActionPause:
		return ""
	default:
		return s.Selector
	}
}

// Describe returns a one-line summary for logs and failure messages.
func (s Step) Describe() string {
	switch s.Kind {
	case ActionExecuteScript:
		return fmt.Sprintf("%s %q", s.Kind, firstLine(s.Code))
	case ActionPause:
		return fmt.Sprintf("%s %s", s.Kind, s.Duration)
	case ActionSendKeys:
		return fmt.Sprintf("%s %s %q", s.Kind, s.Selector, s.Text)
	case ActionAssertTextEquals, ActionAssertTextContains, ActionWaitTextEquals, ActionWaitTextContains:
		return fmt.Sprintf("%s %s %q", s.Kind, s.Selector, s.Expected)
	default:
		return fmt.Sprintf("%s %s", s.Kind, s.Target())
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// validate checks the required fields of a step.
func (s Step) validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown action %q", s.Kind)
	}
	if s.Timeout < 0 || s.Duration < 0 {
		return fmt.Errorf("%s: durations must be non-negative", s.Kind)
	}

	switch s.Kind {
	case ActionClick, ActionWaitVisible, ActionAssertVisible:
		if s.Selector == "" {
			return fmt.Errorf("%s: selector is required", s.Kind)
		}
	case ActionSendKeys:
		if s.Selector == "" {
			return fmt.Errorf("%s: selector is required", s.Kind)
		}
		if s.Text == "" {
			return fmt.Errorf("%s: text is required", s.Kind)
		}
	case ActionExecuteScript:
		if strings.TrimSpace(s.Code) == "" {
			return fmt.Errorf("%s: code is required", s.Kind)
		}
	case ActionAssertTextEquals, ActionWaitTextEquals:
		// Expected may be empty: asserting a cleared region is legitimate.
		if s.Selector == "" {
			return fmt.Errorf("%s: selector is required", s.Kind)
		}
	case ActionAssertTextContains, ActionWaitTextContains:
		if s.Selector == "" {
			return fmt.Errorf("%s: selector is required", s.Kind)
		}
	case ActionPause:
		if s.Duration == 0 {
			return fmt.Errorf("%s: duration is required", s.Kind)
		}
	case ActionOpenFile:
		if s.Path == "" {
			return fmt.Errorf("%s: path is required", s.Kind)
		}
	case ActionAddFile:
		if s.Path == "" {
			return fmt.Errorf("%s: path is required", s.Kind)
		}
		if s.Content != "" && s.ContentFile != "" {
			return fmt.Errorf("%s: content and content_file are mutually exclusive", s.Kind)
		}
	}
	return nil
}

// stepArgs is the union of all mapping keys a step may carry.
type stepArgs struct {
	Selector    string   `yaml:"selector"`
	Text        string   `yaml:"text"`
	Code        string   `yaml:"code"`
	Expected    string   `yaml:"expected"`
	Substring   string   `yaml:"substring"`
	Timeout     Duration `yaml:"timeout"`
	Path        string   `yaml:"path"`
	Content     string   `yaml:"content"`
	ContentFile string   `yaml:"content_file"`
}

// UnmarshalYAML decodes a single-key mapping such as
//
//	- wait_visible: { selector: "#terminal", timeout: 10s }
//	- click: "#clearConsole"
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return fmt.Errorf("line %d: step must be a mapping with exactly one action key", node.Line)
	}

	key, val := node.Content[0], node.Content[1]
	kind := ActionKind(key.Value)
	if !kind.Valid() {
		return fmt.Errorf("line %d: unknown action %q", key.Line, key.Value)
	}
	*s = Step{Kind: kind}

	if kind == ActionPause {
		var d Duration
		if err := val.Decode(&d); err != nil {
			return fmt.Errorf("line %d: pause: %w", val.Line, err)
		}
		s.Duration = time.Duration(d)
		return nil
	}

	var args stepArgs
	switch val.Kind {
	case yaml.ScalarNode:
		field, ok := scalarKey[kind]
		if !ok {
			return fmt.Errorf("line %d: %s requires a mapping", val.Line, kind)
		}
		switch field {
		case "selector":
			args.Selector = val.Value
		case "code":
			args.Code = val.Value
		case "path":
			args.Path = val.Value
		}
	case yaml.MappingNode:
		if err := checkKeys(kind, val); err != nil {
			return err
		}
		if err := val.Decode(&args); err != nil {
			return fmt.Errorf("line %d: %s: %w", val.Line, kind, err)
		}
	default:
		return fmt.Errorf("line %d: %s: unexpected value", val.Line, kind)
	}

	s.Selector = args.Selector
	s.Text = args.Text
	s.Code = args.Code
	s.Timeout = time.Duration(args.Timeout)
	s.Path = args.Path
	s.Content = args.Content
	s.ContentFile = args.ContentFile
	s.Expected = args.Expected
	if kind == ActionAssertTextContains || kind == ActionWaitTextContains {
		s.Expected = args.Substring
	}
	return nil
}

// checkKeys rejects mapping keys the action does not accept, so typos like
// `selecter:` fail at load time instead of producing an empty locator.
func checkKeys(kind ActionKind, m *yaml.Node) error {
	allowed := actionKeys[kind]
	for i := 0; i < len(m.Content); i += 2 {
		k := m.Content[i]
		found := false
		for _, a := range allowed {
			if k.Value == a {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("line %d: %s: unknown field %q (allowed: %s)",
				k.Line, kind, k.Value, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// Duration accepts Go duration strings ("5s", "500ms") or integer
// milliseconds, the unit the browser automation world uses.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	if node.ShortTag() == "!!int" {
		ms, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", node.Value, err)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
