package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadSuite_Valid(t *testing.T) {
	suite, err := LoadSuite("testdata/suites/terminal.yaml")
	require.NoError(t, err)

	assert.Equal(t, "terminal-fake", suite.Name)
	assert.Equal(t, DriverSim, suite.Target.Driver)
	assert.Equal(t, 2*time.Second, time.Duration(suite.Target.WaitTimeout))
	assert.Equal(t, "testdata/suites/terminal.yaml", suite.Path)
	require.Len(t, suite.Scenarios, 2)

	steps := suite.Scenarios[0].Steps
	require.Len(t, steps, 3)
	assert.Equal(t, Step{Kind: ActionWaitVisible, Selector: "#cli", Timeout: 500 * time.Millisecond}, steps[0])
	assert.Equal(t, Step{Kind: ActionExecuteScript, Code: "1 + 1"}, steps[1])
	assert.Equal(t, Step{Kind: ActionWaitTextEquals, Selector: "#journal", Expected: "2"}, steps[2])
}

func TestLoadSuite_CUE(t *testing.T) {
	suite, err := LoadSuite("testdata/suites/terminal.cue")
	require.NoError(t, err)

	assert.Equal(t, "terminal-cue", suite.Name)
	require.Len(t, suite.Scenarios, 1)
	assert.Equal(t, ActionWaitTextContains, suite.Scenarios[0].Steps[1].Kind)
	assert.Equal(t, "remix.loadgist(id)", suite.Scenarios[0].Steps[1].Expected)
}

func TestLoadSuite_FileNotFound(t *testing.T) {
	_, err := LoadSuite("testdata/suites/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read suite file")
}

func TestLoadSuite_ContentFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "script.js", "console.log('from file')\n")
	p := writeFile(t, dir, "suite.yaml", `
name: files
scenarios:
  - name: add
    steps:
      - add_file: { path: "scripts/x.js", content_file: "script.js" }
`)

	suite, err := LoadSuite(p)
	require.NoError(t, err)

	step := suite.Scenarios[0].Steps[0]
	assert.Equal(t, "console.log('from file')\n", step.Content)
	assert.Empty(t, step.ContentFile)
}

func TestLoadSuite_ContentFileMissing(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "suite.yaml", `
name: files
scenarios:
  - name: add
    steps:
      - add_file: { path: "scripts/x.js", content_file: "missing.js" }
`)

	_, err := LoadSuite(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content_file")
}

func TestParseSuite_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown top-level field",
			src:  "name: x\nscenario:\n  - name: a\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			src:  "scenarios:\n  - name: a\n    steps:\n      - click: '#a'\n",
			want: "name is required",
		},
		{
			name: "empty scenarios",
			src:  "name: x\nscenarios: []\n",
			want: "scenarios list is required",
		},
		{
			name: "duplicate scenario",
			src:  "name: x\nscenarios:\n  - name: a\n    steps:\n      - click: '#a'\n  - name: a\n    steps:\n      - click: '#a'\n",
			want: `duplicate name "a"`,
		},
		{
			name: "empty steps",
			src:  "name: x\nscenarios:\n  - name: a\n    steps: []\n",
			want: "steps list is required",
		},
		{
			name: "unknown action",
			src:  "name: x\nscenarios:\n  - name: a\n    steps:\n      - tap: '#a'\n",
			want: `unknown action "tap"`,
		},
		{
			name: "misspelled step field",
			src:  "name: x\nscenarios:\n  - name: a\n    steps:\n      - click: { selecter: '#a' }\n",
			want: `unknown field "selecter"`,
		},
		{
			name: "two action keys",
			src:  "name: x\nscenarios:\n  - name: a\n    steps:\n      - { click: '#a', pause: 1s }\n",
			want: "exactly one action key",
		},
		{
			name: "scalar for mapping action",
			src:  "name: x\nscenarios:\n  - name: a\n    steps:\n      - send_keys: '#a'\n",
			want: "send_keys requires a mapping",
		},
		{
			name: "send_keys without text",
			src:  "name: x\nscenarios:\n  - name: a\n    steps:\n      - send_keys: { selector: '#a' }\n",
			want: "text is required",
		},
		{
			name: "bad duration",
			src:  "name: x\nscenarios:\n  - name: a\n    steps:\n      - pause: soon\n",
			want: `invalid duration "soon"`,
		},
		{
			name: "unknown driver",
			src:  "name: x\ntarget: { driver: selenium }\nscenarios:\n  - name: a\n    steps:\n      - click: '#a'\n",
			want: `unknown driver "selenium"`,
		},
		{
			name: "both content sources",
			src:  "name: x\nscenarios:\n  - name: a\n    steps:\n      - add_file: { path: a.js, content: x, content_file: b.js }\n",
			want: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseSuite_EmptyExpectedAllowed(t *testing.T) {
	suite, err := ParseSuite([]byte(`
name: x
scenarios:
  - name: cleared
    steps:
      - assert_text_equals: { selector: "#journal", expected: "" }
`))
	require.NoError(t, err)
	assert.Equal(t, "", suite.Scenarios[0].Steps[0].Expected)
}

func TestDuration_IntegerIsMilliseconds(t *testing.T) {
	suite, err := ParseSuite([]byte(`
name: x
timeout: 60000
scenarios:
  - name: a
    steps:
      - pause: 2000
      - wait_visible: { selector: "#a", timeout: 1.5s }
`))
	require.NoError(t, err)

	assert.Equal(t, time.Minute, suite.RunTimeout())
	assert.Equal(t, 2*time.Second, suite.Scenarios[0].Steps[0].Duration)
	assert.Equal(t, 1500*time.Millisecond, suite.Scenarios[0].Steps[1].Timeout)
}

func TestLint(t *testing.T) {
	suite, err := ParseSuite([]byte(`
name: x
scenarios:
  - name: flaky
    steps:
      - execute_script: "1 + 1"
      - pause: 2s
      - execute_script: "2 + 2"
      - assert_text_equals: { selector: "#journal", expected: "4" }
  - name: fine
    steps:
      - execute_script: "1 + 1"
      - wait_text_equals: { selector: "#journal", expected: "2" }
`))
	require.NoError(t, err)

	warnings := Lint(suite)
	require.Len(t, warnings, 2)
	assert.Equal(t, "flaky", warnings[0].Scenario)
	assert.Equal(t, 2, warnings[0].Step)
	assert.Contains(t, warnings[0].Message, "fixed pause of 2s")
	assert.Equal(t, 4, warnings[1].Step)
	assert.Contains(t, warnings[1].String(), "flaky step 4:")
}

func TestSuite_Filter(t *testing.T) {
	suite, err := ParseSuite([]byte(`
name: x
scenarios:
  - name: console clear
    steps: [ { click: "#a" } ]
  - name: console autocomplete
    steps: [ { click: "#a" } ]
  - name: execute script
    steps: [ { click: "#a" } ]
`))
	require.NoError(t, err)

	filtered, err := suite.Filter("console*")
	require.NoError(t, err)
	require.Len(t, filtered.Scenarios, 2)
	assert.Equal(t, "console clear", filtered.Scenarios[0].Name)
	assert.Len(t, suite.Scenarios, 3, "original is untouched")

	all, err := suite.Filter("")
	require.NoError(t, err)
	assert.Len(t, all.Scenarios, 3)

	_, err = suite.Filter("[")
	assert.Error(t, err)
}

func TestStep_Describe(t *testing.T) {
	assert.Equal(t, `execute_script "remix.help() ..."`,
		Step{Kind: ActionExecuteScript, Code: "remix.help()\nconsole.log(1)"}.Describe())
	assert.Equal(t, "pause 2s", Step{Kind: ActionPause, Duration: 2 * time.Second}.Describe())
	assert.Equal(t, "open_file contracts/a.sol", Step{Kind: ActionOpenFile, Path: "contracts/a.sol"}.Describe())
	assert.Equal(t, `wait_text_equals #j "2"`, Step{Kind: ActionWaitTextEquals, Selector: "#j", Expected: "2"}.Describe())
}
