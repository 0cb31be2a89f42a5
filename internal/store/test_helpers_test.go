package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/termcheck/internal/harness"
)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestReport builds a two-scenario report: one pass, one failure.
func createTestReport(runID, suite string, started time.Time) *harness.Report {
	return &harness.Report{
		RunID:      runID,
		Suite:      suite,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Results: []harness.ScenarioResult{
			{
				Name:   "arithmetic",
				Status: harness.StatusPassed,
				Steps: []harness.StepEvent{
					{Seq: 1, Index: 1, Action: harness.ActionWaitVisible, Target: "#cli", Outcome: harness.OutcomeOK, Duration: 3 * time.Millisecond},
					{Seq: 2, Index: 2, Action: harness.ActionExecuteScript, Outcome: harness.OutcomeOK, Duration: time.Millisecond},
					{Seq: 3, Index: 3, Action: harness.ActionWaitTextEquals, Target: "#journal", Outcome: harness.OutcomeOK, Observed: "2", Duration: 40 * time.Millisecond},
				},
				Duration: 44 * time.Millisecond,
			},
			{
				Name:          "missing button",
				Status:        harness.StatusFailed,
				FailureReason: "step 2 (click): #nope not found",
				FailedStep:    2,
				ErrorKind:     harness.KindElementNotFound,
				Steps: []harness.StepEvent{
					{Seq: 4, Index: 1, Action: harness.ActionClick, Target: "#cli", Outcome: harness.OutcomeOK},
					{Seq: 5, Index: 2, Action: harness.ActionClick, Target: "#nope", Outcome: harness.OutcomeError,
						Kind: harness.KindElementNotFound, Message: "#nope not found"},
				},
				Duration: 10 * time.Millisecond,
			},
		},
		Passed: 1,
		Failed: 1,
	}
}
