package harness

import (
	"fmt"
	"time"
)

// Status is a scenario's position in its lifecycle:
//
//	pending -> running -> passed | failed | skipped
//	pending -> skipped
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusSkipped},
	StatusRunning: {StatusPassed, StatusFailed, StatusSkipped},
}

// Step outcomes recorded in StepEvent.Outcome.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// StepEvent records one executed step.
type StepEvent struct {
	Seq      int64         `json:"seq"`
	Index    int           `json:"index"` // 1-based position in the scenario
	Action   ActionKind    `json:"action"`
	Target   string        `json:"target,omitempty"`
	Outcome  string        `json:"outcome"`
	Kind     ErrorKind     `json:"error_kind,omitempty"`
	Message  string        `json:"message,omitempty"`
	Observed string        `json:"observed,omitempty"` // captured text for text steps
	Duration time.Duration `json:"duration_ns"`
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Name   string `json:"name"`
	Status Status `json:"status"`

	// FailureReason is set for failed and skipped scenarios.
	FailureReason string `json:"failure_reason,omitempty"`

	// FailedStep is the 1-based index of the step that ended the scenario.
	// Zero when no step failed. A failed reset before the first step is
	// reported as step 0 with ErrorKind set; a zero FailedStep on a failed
	// scenario always means the reset failed.
	FailedStep int `json:"failed_step,omitempty"`

	// ErrorKind categorizes the failure.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Steps holds the executed steps only; steps after a failure never run.
	Steps []StepEvent `json:"steps"`

	Duration time.Duration `json:"duration_ns"`
}

// Pass reports whether the scenario passed.
func (r *ScenarioResult) Pass() bool {
	return r.Status == StatusPassed
}

// transition moves the scenario along its lifecycle. An illegal move is a
// bug in the runner, not a test outcome.
func (r *ScenarioResult) transition(to Status) {
	for _, allowed := range transitions[r.Status] {
		if allowed == to {
			r.Status = to
			return
		}
	}
	panic(fmt.Sprintf("harness: illegal scenario transition %s -> %s (%s)", r.Status, to, r.Name))
}

// Report aggregates the results of one suite run.
type Report struct {
	RunID      string           `json:"run_id"`
	Suite      string           `json:"suite"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Results    []ScenarioResult `json:"results"`
	Passed     int              `json:"passed"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`

	// Aborted is the reason the run stopped early, if it did.
	Aborted string `json:"aborted,omitempty"`
}

// Pass is true when every scenario ran and passed.
func (r *Report) Pass() bool {
	return r.Failed == 0 && r.Skipped == 0 && r.Aborted == ""
}

// Total returns the number of scenarios in the report.
func (r *Report) Total() int {
	return len(r.Results)
}

// tally recomputes the counters from the results.
func (r *Report) tally() {
	r.Passed, r.Failed, r.Skipped = 0, 0, 0
	for _, res := range r.Results {
		switch res.Status {
		case StatusPassed:
			r.Passed++
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		}
	}
}
