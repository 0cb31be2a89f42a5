package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/termcheck/internal/harness"
)

const journalLast = `'*[data-id="terminalJournal"] > div:last-child'`

var passingSuite = `
name: cli-sim
target:
  driver: sim
  wait_timeout: 1s
  poll_interval: 10ms
scenarios:
  - name: arithmetic
    steps:
      - wait_visible: '*[data-id="terminalCli"]'
      - execute_script: "1 + 1"
      - wait_text_equals: { selector: ` + journalLast + `, expected: "2" }
`

var failingSuite = passingSuite + `
  - name: missing
    steps:
      - click: "#does-not-exist"
`

func TestRun_AllPass(t *testing.T) {
	path := writeSuite(t, "pass.yaml", passingSuite)

	out, _, err := executeCommand(t, "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arithmetic")
	assert.Contains(t, out, "1 passed, 0 failed, 0 skipped (1 total)")
}

func TestRun_ScenarioFailureExitsOne(t *testing.T) {
	path := writeSuite(t, "fail.yaml", failingSuite)

	out, _, err := executeCommand(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ arithmetic")
	assert.Contains(t, out, "✗ missing")
	assert.Contains(t, out, "1 passed, 1 failed, 0 skipped (2 total)")
}

func TestRun_JSON(t *testing.T) {
	path := writeSuite(t, "fail.yaml", failingSuite)

	out, _, err := executeCommand(t, "run", "--format", "json", path)
	require.Error(t, err)

	var resp struct {
		Status string    `json:"status"`
		RunID  string    `json:"run_id"`
		Error  *CLIError `json:"error"`
		Data   struct {
			Report harness.Report `json:"report"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFail, resp.Error.Code)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, resp.RunID, resp.Data.Report.RunID)
	require.Len(t, resp.Data.Report.Results, 2)
	assert.Equal(t, harness.KindElementNotFound, resp.Data.Report.Results[1].ErrorKind)
}

func TestRun_Filter(t *testing.T) {
	path := writeSuite(t, "fail.yaml", failingSuite)

	out, _, err := executeCommand(t, "run", "--filter", "arith*", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "missing")

	_, _, err = executeCommand(t, "run", "--filter", "nothing-*", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_SuiteNotFound(t *testing.T) {
	out, _, err := executeCommand(t, "run", "/nonexistent/suite.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestRun_InvalidSuite(t *testing.T) {
	path := writeSuite(t, "bad.yaml", "name: bad\nscenarios: []\n")

	out, _, err := executeCommand(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestRun_UnknownDriverFlag(t *testing.T) {
	path := writeSuite(t, "pass.yaml", passingSuite)

	out, _, err := executeCommand(t, "run", "--driver", "telnet", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E401]")
	assert.Contains(t, out, `unknown driver "telnet"`)
}

func TestRun_TimeoutAborts(t *testing.T) {
	path := writeSuite(t, "slow.yaml", `
name: slow
target: { driver: sim }
scenarios:
  - name: sleepy
    steps:
      - pause: 5s
  - name: never
    steps:
      - click: '*[data-id="terminalCli"]'
`)

	start := time.Now()
	out, _, err := executeCommand(t, "run", "--timeout", "100ms", path)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "0 passed, 0 failed, 2 skipped (2 total)")
	assert.Contains(t, out, "Run stopped early")
}

func TestRun_RecordsHistoryAndChanges(t *testing.T) {
	path := writeSuite(t, "fail.yaml", failingSuite)
	db := filepath.Join(t.TempDir(), "runs.db")

	_, _, err := executeCommand(t, "run", "--db", db, "--filter", "arithmetic", path)
	require.NoError(t, err)

	out, _, err := executeCommand(t, "run", "--db", db, path)
	require.Error(t, err)
	assert.Contains(t, out, "Changes since the previous run:")
	assert.Contains(t, out, "missing: new -> failed")

	out, _, err = executeCommand(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"), "header plus two runs:\n%s", out)
	assert.Contains(t, out, "cli-sim")
	assert.Contains(t, out, "sim")
}

func TestRun_WritesReportFile(t *testing.T) {
	path := writeSuite(t, "pass.yaml", passingSuite)
	reportPath := filepath.Join(t.TempDir(), "out", "report.html")

	_, _, err := executeCommand(t, "run", "--report", reportPath, path)
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<table>")
	assert.Contains(t, string(data), "arithmetic")
}

func TestRun_BadReportExtension(t *testing.T) {
	path := writeSuite(t, "pass.yaml", passingSuite)

	out, _, err := executeCommand(t, "run", "--report", filepath.Join(t.TempDir(), "r.txt"), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E007]")
}

func TestResolveSettings(t *testing.T) {
	off := false
	suite := &harness.Suite{Target: harness.TargetConfig{
		Driver:       harness.DriverBridge,
		URL:          "ws://suite/ws",
		Headless:     &off,
		WaitTimeout:  harness.Duration(3 * time.Second),
		PollInterval: harness.Duration(50 * time.Millisecond),
	}}
	opts := &RunOptions{
		Driver:      harness.DriverSim,
		URL:         "ws://flag/ws",
		Headless:    true,
		WaitTimeout: time.Second,
	}

	none := func(string) bool { return false }
	ts := resolveSettings(suite, opts, none)
	assert.Equal(t, harness.DriverBridge, ts.Driver)
	assert.Equal(t, "ws://suite/ws", ts.URL)
	assert.False(t, ts.Headless)
	assert.Equal(t, 3*time.Second, ts.WaitTimeout)
	assert.Equal(t, 50*time.Millisecond, ts.PollInterval)

	some := func(name string) bool { return name == "url" || name == "wait-timeout" || name == "headless" }
	ts = resolveSettings(suite, opts, some)
	assert.Equal(t, harness.DriverBridge, ts.Driver)
	assert.Equal(t, "ws://flag/ws", ts.URL)
	assert.True(t, ts.Headless)
	assert.Equal(t, time.Second, ts.WaitTimeout)

	ts = resolveSettings(&harness.Suite{}, &RunOptions{}, none)
	assert.Equal(t, harness.DriverBrowser, ts.Driver)
	assert.True(t, ts.Headless)
}

func TestRunExitError(t *testing.T) {
	passed := &harness.Report{Results: []harness.ScenarioResult{{Status: harness.StatusPassed}}, Passed: 1}
	failed := &harness.Report{Results: []harness.ScenarioResult{{Status: harness.StatusFailed}}, Failed: 1}
	lost := fmt.Errorf("run stopped: %w", harness.ErrConnectionLost)
	aborted := fmt.Errorf("run aborted: %w", errors.New("context canceled"))

	assert.NoError(t, runExitError(passed, nil))
	assert.Equal(t, ExitFailure, GetExitCode(runExitError(failed, nil)))
	assert.Equal(t, ExitCommandError, GetExitCode(runExitError(failed, lost)))
	assert.Equal(t, ExitFailure, GetExitCode(runExitError(failed, aborted)))
}
