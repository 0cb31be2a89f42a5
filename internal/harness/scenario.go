package harness

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Suite is an ordered set of scenarios run against one target session.
type Suite struct {
	// Name identifies the suite in reports and run history.
	Name string `yaml:"name"`

	// Description explains what the suite covers.
	Description string `yaml:"description,omitempty"`

	// Target holds connection defaults. Command-line flags override them.
	Target TargetConfig `yaml:"target,omitempty"`

	// ResetBetween resets the target before every scenario when the
	// target supports it.
	ResetBetween bool `yaml:"reset_between,omitempty"`

	// Timeout bounds the whole run. Zero means no limit.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Scenarios run in document order.
	Scenarios []Scenario `yaml:"scenarios"`

	// Path is the file the suite was loaded from. Empty for suites built in code.
	Path string `yaml:"-"`
}

// Scenario is one named, ordered sequence of steps plus assertions.
type Scenario struct {
	// Name uniquely identifies the scenario within its suite.
	Name string `yaml:"name"`

	// Description is free text shown in verbose reports.
	Description string `yaml:"description,omitempty"`

	// Steps execute strictly in order.
	Steps []Step `yaml:"steps"`
}

// TargetConfig describes how to reach the target application.
type TargetConfig struct {
	// Driver selects the automation backend: "browser", "bridge" or "sim".
	Driver string `yaml:"driver,omitempty"`

	// URL is the page (browser) or WebSocket endpoint (bridge).
	URL string `yaml:"url,omitempty"`

	// Headless runs the browser without a window. Defaults to true.
	Headless *bool `yaml:"headless,omitempty"`

	// WaitTimeout is the default for wait_* steps without a timeout.
	WaitTimeout Duration `yaml:"wait_timeout,omitempty"`

	// PollInterval is the delay between condition checks.
	PollInterval Duration `yaml:"poll_interval,omitempty"`

	// ConsoleInput is the selector execute_script types into.
	ConsoleInput string `yaml:"console_input,omitempty"`
}

// Driver names accepted in TargetConfig.Driver.
const (
	DriverBrowser = "browser"
	DriverBridge  = "bridge"
	DriverSim     = "sim"
)

// LoadSuite reads a suite from a .yaml, .yml or .cue file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields or fails validation.
func LoadSuite(filePath string) (*Suite, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(filePath), ".cue") {
		data, err = cueToJSON(data, filePath)
		if err != nil {
			return nil, err
		}
	}

	suite, err := decodeSuite(data)
	if err != nil {
		return nil, err
	}
	suite.Path = filePath

	if err := resolveContentFiles(suite, filepath.Dir(filePath)); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}

	if err := ValidateSuite(suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}

	return suite, nil
}

// ParseSuite decodes and validates a YAML suite held in memory.
// content_file references are not resolved.
func ParseSuite(data []byte) (*Suite, error) {
	suite, err := decodeSuite(data)
	if err != nil {
		return nil, err
	}
	if err := ValidateSuite(suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return suite, nil
}

func decodeSuite(data []byte) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches `scenario:` vs `scenarios:`
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &suite, nil
}

// cueToJSON compiles a CUE suite and exports it as JSON, which the YAML
// decoder then reads through the same strict path as .yaml files.
func cueToJSON(data []byte, filename string) ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE suite is not concrete: %w", err)
	}
	out, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE: %w", err)
	}
	return out, nil
}

// resolveContentFiles inlines add_file content_file references.
func resolveContentFiles(s *Suite, baseDir string) error {
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		for j := range sc.Steps {
			step := &sc.Steps[j]
			if step.Kind != ActionAddFile || step.ContentFile == "" {
				continue
			}
			if step.Content != "" {
				return fmt.Errorf("scenario %q step %d: content and content_file are mutually exclusive", sc.Name, j+1)
			}
			p := step.ContentFile
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseDir, p)
			}
			body, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("scenario %q step %d: content_file: %w", sc.Name, j+1, err)
			}
			step.Content = string(body)
			step.ContentFile = ""
		}
	}
	return nil
}

// ValidateSuite checks required fields and scenario name uniqueness.
func ValidateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Scenarios) == 0 {
		return fmt.Errorf("scenarios list is required and must be non-empty")
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	switch s.Target.Driver {
	case "", DriverBrowser, DriverBridge, DriverSim:
	default:
		return fmt.Errorf("target.driver: unknown driver %q", s.Target.Driver)
	}

	seen := make(map[string]int, len(s.Scenarios))
	for i, sc := range s.Scenarios {
		if sc.Name == "" {
			return fmt.Errorf("scenarios[%d]: name is required", i)
		}
		if prev, dup := seen[sc.Name]; dup {
			return fmt.Errorf("scenarios[%d]: duplicate name %q (first defined at scenarios[%d])", i, sc.Name, prev)
		}
		seen[sc.Name] = i

		if len(sc.Steps) == 0 {
			return fmt.Errorf("scenario %q: steps list is required and must be non-empty", sc.Name)
		}
		for j, step := range sc.Steps {
			if err := step.validate(); err != nil {
				return fmt.Errorf("scenario %q step %d: %w", sc.Name, j+1, err)
			}
		}
	}
	return nil
}

// Warning is a non-fatal finding about a suite.
type Warning struct {
	Scenario string `json:"scenario"`
	Step     int    `json:"step"`
	Message  string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s step %d: %s", w.Scenario, w.Step, w.Message)
}

// Lint reports steps that are likely to make a suite flaky.
func Lint(s *Suite) []Warning {
	var warnings []Warning
	for _, sc := range s.Scenarios {
		for j, step := range sc.Steps {
			if step.Kind == ActionPause {
				warnings = append(warnings, Warning{
					Scenario: sc.Name,
					Step:     j + 1,
					Message: fmt.Sprintf("fixed pause of %s; prefer wait_text_equals or wait_text_contains with a timeout",
						step.Duration),
				})
			}
			if j > 0 && sc.Steps[j-1].Kind == ActionExecuteScript &&
				(step.Kind == ActionAssertTextEquals || step.Kind == ActionAssertTextContains) {
				warnings = append(warnings, Warning{
					Scenario: sc.Name,
					Step:     j + 1,
					Message:  "assertion directly after execute_script reads output that may not be rendered yet; use a wait_text_* step",
				})
			}
		}
	}
	return warnings
}

// Filter returns a copy of the suite keeping scenarios whose name matches
// the glob pattern. An empty pattern keeps everything.
func (s *Suite) Filter(pattern string) (*Suite, error) {
	out := *s
	if pattern == "" {
		return &out, nil
	}
	out.Scenarios = nil
	for _, sc := range s.Scenarios {
		matched, err := path.Match(pattern, sc.Name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out.Scenarios = append(out.Scenarios, sc)
		}
	}
	return &out, nil
}

// RunTimeout returns the suite-level timeout.
func (s *Suite) RunTimeout() time.Duration {
	return time.Duration(s.Timeout)
}
