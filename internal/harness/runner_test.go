package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/termcheck/internal/testutil"
)

func testOptions() Options {
	return Options{
		WaitTimeout:  200 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		Clock:        testutil.NewDeterministicClock(),
		RunIDs:       testutil.NewFixedIDGenerator("run-1"),
	}
}

func mustParse(t *testing.T, src string) *Suite {
	t.Helper()
	suite, err := ParseSuite([]byte(src))
	require.NoError(t, err)
	return suite
}

func TestRunner_AllStepsPass(t *testing.T) {
	suite := mustParse(t, `
name: basic
scenarios:
  - name: arithmetic
    steps:
      - wait_visible: "#cli"
      - execute_script: "1 + 1"
      - wait_text_equals: { selector: "#journal", expected: "2" }
      - assert_text_contains: { selector: "#journal", substring: "2" }
`)

	report, err := NewRunner(terminalFake(), testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)

	assert.True(t, report.Pass())
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 1, report.Passed)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	assert.Equal(t, StatusPassed, res.Status)
	assert.Empty(t, res.FailureReason)
	assert.Zero(t, res.FailedStep)
	require.Len(t, res.Steps, 4)
	for i, ev := range res.Steps {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, i+1, ev.Index)
		assert.Equal(t, OutcomeOK, ev.Outcome)
	}
	assert.Equal(t, "2", res.Steps[2].Observed)
}

func TestRunner_ElementNotFoundStopsScenario(t *testing.T) {
	target := terminalFake()
	suite := mustParse(t, `
name: missing
scenarios:
  - name: broken locator
    steps:
      - click: "#cli"
      - wait_visible: { selector: "#nope", timeout: 20ms }
      - click: "#clear"
`)

	report, err := NewRunner(target, testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 2, res.FailedStep)
	assert.Equal(t, KindElementNotFound, res.ErrorKind)
	assert.Contains(t, res.FailureReason, "step 2")
	assert.Contains(t, res.FailureReason, "#nope")
	assert.Len(t, res.Steps, 2, "steps after the failure must not run")
	assert.Equal(t, []string{"click #cli"}, target.calls)
	assert.False(t, report.Pass())
}

func TestRunner_FailuresAreIndependent(t *testing.T) {
	suite := mustParse(t, `
name: independent
scenarios:
  - name: fails
    steps:
      - assert_text_equals: { selector: "#journal", expected: "something else" }
  - name: passes
    steps:
      - execute_script: "console.log('hi')"
      - wait_text_equals: { selector: "#journal", expected: "hi" }
`)

	report, err := NewRunner(terminalFake(), testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Equal(t, StatusPassed, report.Results[1].Status)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Skipped)
}

func TestRunner_AssertTextMismatch(t *testing.T) {
	suite := mustParse(t, `
name: mismatch
scenarios:
  - name: wrong text
    steps:
      - assert_text_equals: { selector: "#journal", expected: "Welcome!" }
`)

	report, err := NewRunner(terminalFake(), testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, KindAssertionFailed, res.ErrorKind)
	assert.Contains(t, res.FailureReason, `Expected: text "Welcome!"`)
	assert.Contains(t, res.FailureReason, `Actual: text "Welcome"`)
	assert.Equal(t, "Welcome", res.Steps[0].Observed)
}

func TestRunner_ClearedRegionEqualsEmpty(t *testing.T) {
	suite := mustParse(t, `
name: clear
scenarios:
  - name: clear console
    steps:
      - execute_script: "1 + 1"
      - wait_text_equals: { selector: "#journal", expected: "2" }
      - click: "#clear"
      - assert_text_equals: { selector: "#journal", expected: "" }
`)

	report, err := NewRunner(terminalFake(), testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.True(t, report.Pass())
}

func TestRunner_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		inject error
		slow   string
		step   string
		want   ErrorKind
	}{
		{"script rejected", nil, "", `execute_script: "this is not code"`, KindScriptError},
		{"stale element", ErrStaleElement, "", `assert_text_equals: { selector: "#journal", expected: "x" }`, KindHarnessFault},
		{"opaque driver error", errors.New("protocol fault"), "", `click: "#journal"`, KindHarnessFault},
		{"assert visible", nil, "", `assert_visible: { selector: "#nope", timeout: 10ms }`, KindAssertionFailed},
		{"missing file", nil, "", `open_file: "contracts/none.sol"`, KindElementNotFound},
		{"script past step timeout", nil, "sleep(2000)", `execute_script: "sleep(2000)"`, KindHarnessFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := terminalFake()
			if tt.inject != nil {
				target.errs["#journal"] = tt.inject
			}
			if tt.slow != "" {
				target.slow[tt.slow] = true
			}
			suite := mustParse(t, "name: kinds\nscenarios:\n  - name: one\n    steps:\n      - "+tt.step+"\n")

			report, err := NewRunner(target, testOptions()).Run(context.Background(), suite)
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, report.Results[0].Status)
			assert.Equal(t, tt.want, report.Results[0].ErrorKind)
			assert.Equal(t, 1, report.Results[0].FailedStep)
		})
	}
}

func TestRunner_SlowScriptDoesNotStopRun(t *testing.T) {
	target := terminalFake()
	target.slow["sleep(2000)"] = true
	suite := mustParse(t, `
name: slow
scenarios:
  - name: slow script
    steps:
      - execute_script: "sleep(2000)"
  - name: simple
    steps:
      - execute_script: "1 + 1"
      - wait_text_equals: { selector: "#journal", expected: "2" }
`)

	report, err := NewRunner(target, testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Empty(t, report.Aborted)

	assert.Equal(t, StatusFailed, report.Results[0].Status)
	assert.Equal(t, KindHarnessFault, report.Results[0].ErrorKind)
	assert.Contains(t, report.Results[0].FailureReason, "deadline exceeded")
	assert.Equal(t, StatusPassed, report.Results[1].Status)
}

func TestRunner_WaitTextPollsUntilRendered(t *testing.T) {
	target := terminalFake()
	target.scripts["remix.execute('slow.js')"] = func(f *fakeTarget) error {
		f.later("#journal", "done after delay", 30*time.Millisecond)
		return nil
	}
	suite := mustParse(t, `
name: polling
scenarios:
  - name: async output
    steps:
      - execute_script: "remix.execute('slow.js')"
      - wait_text_contains: { selector: "#journal", substring: "after delay", timeout: 1s }
`)

	report, err := NewRunner(target, testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.True(t, report.Pass())
}

func TestRunner_WaitTextWrongTextIsAssertion(t *testing.T) {
	suite := mustParse(t, `
name: polling
scenarios:
  - name: never matches
    steps:
      - wait_text_equals: { selector: "#journal", expected: "2", timeout: 30ms }
`)

	report, err := NewRunner(terminalFake(), testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, KindAssertionFailed, res.ErrorKind)
	assert.Contains(t, res.FailureReason, "(after 30ms)")
	assert.Equal(t, "Welcome", res.Steps[0].Observed)
}

func TestRunner_WaitTextMissingElement(t *testing.T) {
	suite := mustParse(t, `
name: polling
scenarios:
  - name: no element
    steps:
      - wait_text_contains: { selector: "#nope", substring: "x", timeout: 20ms }
`)

	report, err := NewRunner(terminalFake(), testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, KindElementNotFound, report.Results[0].ErrorKind)
}

func TestRunner_ConnectionLostStopsRun(t *testing.T) {
	target := terminalFake()
	target.errs["#gone"] = ErrConnectionLost
	target.set("#gone", "")
	suite := mustParse(t, `
name: lost
scenarios:
  - name: first
    steps:
      - click: "#cli"
  - name: second
    steps:
      - click: "#gone"
  - name: third
    steps:
      - click: "#cli"
`)

	report, err := NewRunner(target, testOptions()).Run(context.Background(), suite)
	require.Error(t, err)
	assert.True(t, IsConnectionLost(err))
	require.NotNil(t, report)

	assert.Equal(t, StatusPassed, report.Results[0].Status)
	assert.Equal(t, StatusFailed, report.Results[1].Status)
	assert.Equal(t, KindConnectionLost, report.Results[1].ErrorKind)
	assert.Equal(t, StatusSkipped, report.Results[2].Status)
	assert.Contains(t, report.Results[2].FailureReason, "not run")
	assert.Empty(t, report.Results[2].Steps)
	assert.NotEmpty(t, report.Aborted)
	assert.Equal(t, 1, report.Skipped)
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite := mustParse(t, `
name: cancelled
scenarios:
  - name: a
    steps:
      - click: "#cli"
  - name: b
    steps:
      - click: "#cli"
`)
	target := terminalFake()

	report, err := NewRunner(target, testOptions()).Run(ctx, suite)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, report.Skipped)
	assert.Empty(t, target.calls)
}

func TestRunner_CancelledMidStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	suite := mustParse(t, `
name: cancelled
scenarios:
  - name: slow
    steps:
      - click: "#cli"
      - pause: 10s
  - name: never
    steps:
      - click: "#cli"
`)

	report, err := NewRunner(terminalFake(), testOptions()).Run(ctx, suite)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsAborted(err))

	res := report.Results[0]
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, KindAborted, res.ErrorKind)
	assert.Equal(t, 2, res.FailedStep)
	assert.Contains(t, res.FailureReason, "aborted")
	assert.Equal(t, StatusSkipped, report.Results[1].Status)
	assert.Equal(t, 0, report.Failed)
}

func TestRunner_SuiteTimeout(t *testing.T) {
	suite := mustParse(t, `
name: timeout
timeout: 30ms
scenarios:
  - name: too slow
    steps:
      - pause: 5s
`)

	report, err := NewRunner(terminalFake(), testOptions()).Run(context.Background(), suite)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatusSkipped, report.Results[0].Status)
	assert.Equal(t, KindAborted, report.Results[0].ErrorKind)
}

func TestRunner_ResetBetweenScenarios(t *testing.T) {
	target := terminalFake()
	suite := mustParse(t, `
name: reset
reset_between: true
scenarios:
  - name: a
    steps:
      - click: "#cli"
  - name: b
    steps:
      - click: "#cli"
`)

	report, err := NewRunner(target, testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.True(t, report.Pass())
	assert.Equal(t, 2, target.resets)
}

func TestRunner_ResetFailureFailsScenario(t *testing.T) {
	target := terminalFake()
	target.errs["reset"] = errors.New("reload failed")
	suite := mustParse(t, `
name: reset
reset_between: true
scenarios:
  - name: a
    steps:
      - click: "#cli"
`)

	report, err := NewRunner(target, testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindHarnessFault, res.ErrorKind)
	assert.Zero(t, res.FailedStep)
	assert.Contains(t, res.FailureReason, "step 0 (reset)")
	assert.Empty(t, target.calls)
}

func TestRunner_FilesAndSendKeys(t *testing.T) {
	target := terminalFake()
	suite := mustParse(t, `
name: files
scenarios:
  - name: add and open
    steps:
      - add_file: { path: "scripts/a.js", content: "console.log('a')" }
      - open_file: "scripts/a.js"
      - assert_text_equals: { selector: "#editor", expected: "console.log('a')" }
      - send_keys: { selector: "#cli", text: "remix." }
      - assert_text_equals: { selector: "#cli", expected: "remix." }
`)

	report, err := NewRunner(target, testOptions()).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.True(t, report.Pass(), "%+v", report.Results[0])
	assert.Equal(t, "console.log('a')", target.files["scripts/a.js"])
}

func TestRunner_RunScenario(t *testing.T) {
	sc := &Scenario{
		Name: "single",
		Steps: []Step{
			{Kind: ActionExecuteScript, Code: "1 + 1"},
			{Kind: ActionWaitTextEquals, Selector: "#journal", Expected: "2"},
		},
	}

	res := NewRunner(terminalFake(), testOptions()).RunScenario(context.Background(), sc)
	assert.True(t, res.Pass())
	assert.Len(t, res.Steps, 2)
}

func TestRunner_StepDurationsFromInjectedClock(t *testing.T) {
	opts := testOptions()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	opts.Now = testutil.NewSteppedTime(start, time.Millisecond).Now

	suite := mustParse(t, `
name: timing
scenarios:
  - name: one
    steps:
      - click: "#cli"
`)

	report, err := NewRunner(terminalFake(), opts).Run(context.Background(), suite)
	require.NoError(t, err)
	assert.Equal(t, start, report.StartedAt)
	assert.Equal(t, time.Millisecond, report.Results[0].Steps[0].Duration)
	assert.True(t, report.FinishedAt.After(report.StartedAt))
}
