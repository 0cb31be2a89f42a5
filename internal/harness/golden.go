package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/termcheck/internal/canon"
)

// Snapshot converts a report to a map suitable for canonical JSON.
//
// Run IDs, timestamps, durations and free-text messages are left out so the
// same suite against the same target state always yields identical bytes.
func Snapshot(report *Report) map[string]any {
	scenarios := make([]any, len(report.Results))
	for i, res := range report.Results {
		steps := make([]any, len(res.Steps))
		for j, ev := range res.Steps {
			step := map[string]any{
				"seq":     ev.Seq,
				"index":   ev.Index,
				"action":  string(ev.Action),
				"outcome": ev.Outcome,
			}
			if ev.Target != "" {
				step["target"] = ev.Target
			}
			if ev.Kind != "" {
				step["error_kind"] = string(ev.Kind)
			}
			if ev.Observed != "" {
				step["observed"] = NormalizeText(ev.Observed)
			}
			steps[j] = step
		}

		scenario := map[string]any{
			"name":   res.Name,
			"status": string(res.Status),
			"steps":  steps,
		}
		if res.FailedStep > 0 {
			scenario["failed_step"] = res.FailedStep
		}
		if res.ErrorKind != "" {
			scenario["error_kind"] = string(res.ErrorKind)
		}
		scenarios[i] = scenario
	}

	return map[string]any{
		"suite":     report.Suite,
		"scenarios": scenarios,
		"passed":    report.Passed,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
	}
}

// MarshalSnapshot returns the canonical JSON form of Snapshot(report).
func MarshalSnapshot(report *Report) ([]byte, error) {
	return canon.Marshal(Snapshot(report))
}

// RunWithGolden runs the suite against target and compares the snapshot
// with testdata/golden/{suite.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the report so callers can make further assertions. Test failure
// (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, target Target, suite *Suite, opts Options) (*Report, error) {
	t.Helper()

	report, err := NewRunner(target, opts).Run(context.Background(), suite)
	if err != nil {
		return report, err
	}
	return report, AssertGolden(t, suite.Name, report)
}

// AssertGolden compares an existing report against a golden file without
// re-running anything.
func AssertGolden(t *testing.T, name string, report *Report) error {
	t.Helper()

	data, err := MarshalSnapshot(report)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
