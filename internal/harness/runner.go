package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Defaults applied by NewRunner.
const (
	DefaultWaitTimeout = 10 * time.Second
)

// Options configures a Runner. Zero values select defaults.
type Options struct {
	// WaitTimeout bounds wait steps without an explicit timeout and every
	// non-waiting UI call.
	WaitTimeout time.Duration

	// PollInterval is the delay between condition checks in wait_text_*.
	PollInterval time.Duration

	// Logger receives step progress. Defaults to a discarding logger.
	Logger *slog.Logger

	// Clock stamps step events. Defaults to a fresh Clock.
	Clock Sequencer

	// RunIDs generates the report's run ID. Defaults to UUIDv7.
	RunIDs IDGenerator

	// Now returns wall time for report timestamps and durations.
	Now func() time.Time
}

// Runner executes suites against a single target session.
//
// The runner does not own the target: the caller opens it, passes it here
// and closes it after the run. Scenarios share the session (console history,
// open files) unless the suite requests a reset between scenarios.
type Runner struct {
	target Target
	opts   Options
	logger *slog.Logger
}

// NewRunner creates a runner for the given target session.
func NewRunner(target Target, opts Options) *Runner {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	if opts.RunIDs == nil {
		opts.RunIDs = UUIDv7Generator{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{target: target, opts: opts, logger: opts.Logger}
}

// Run executes every scenario of the suite in order and returns the report.
//
// Scenario failures are recorded and do not stop the run. Two conditions
// do, and are also returned as an error alongside the (complete) report:
//   - the target connection is lost: remaining scenarios are skipped and the
//     error wraps ErrConnectionLost
//   - ctx is cancelled or the suite timeout elapses: the interrupted and
//     remaining scenarios are skipped and the error wraps ctx.Err()
func (r *Runner) Run(ctx context.Context, suite *Suite) (*Report, error) {
	if t := suite.RunTimeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	report := &Report{
		RunID:     r.opts.RunIDs.Generate(),
		Suite:     suite.Name,
		StartedAt: r.opts.Now(),
		Results:   make([]ScenarioResult, len(suite.Scenarios)),
	}
	for i, sc := range suite.Scenarios {
		report.Results[i] = ScenarioResult{Name: sc.Name, Status: StatusPending, Steps: []StepEvent{}}
	}

	r.logger.Info("suite started", "suite", suite.Name, "run_id", report.RunID, "scenarios", len(suite.Scenarios))

	var fatal error
	for i := range suite.Scenarios {
		res := &report.Results[i]

		if fatal != nil {
			res.transition(StatusSkipped)
			res.FailureReason = fmt.Sprintf("not run: %v", fatal)
			continue
		}
		if err := ctx.Err(); err != nil {
			fatal = err
			res.transition(StatusSkipped)
			res.FailureReason = fmt.Sprintf("not run: run aborted (%v)", err)
			continue
		}

		se := r.runScenario(ctx, &suite.Scenarios[i], suite.ResetBetween, res)
		if se == nil {
			continue
		}
		switch se.Kind {
		case KindConnectionLost:
			fatal = se
		case KindAborted:
			fatal = ctx.Err()
		}
	}

	report.FinishedAt = r.opts.Now()
	report.tally()

	r.logger.Info("suite finished",
		"suite", suite.Name,
		"run_id", report.RunID,
		"passed", report.Passed,
		"failed", report.Failed,
		"skipped", report.Skipped,
	)

	if fatal == nil {
		return report, nil
	}
	report.Aborted = fatal.Error()
	if IsConnectionLost(fatal) {
		return report, fmt.Errorf("run stopped: %w", fatal)
	}
	return report, fmt.Errorf("run aborted: %w", fatal)
}

// RunScenario executes a single scenario outside of a suite.
func (r *Runner) RunScenario(ctx context.Context, sc *Scenario) ScenarioResult {
	res := ScenarioResult{Name: sc.Name, Status: StatusPending, Steps: []StepEvent{}}
	r.runScenario(ctx, sc, false, &res)
	return res
}

// runScenario executes steps in order until one fails. Returns the step
// error that ended the scenario, or nil if it passed.
func (r *Runner) runScenario(ctx context.Context, sc *Scenario, reset bool, res *ScenarioResult) *StepError {
	start := r.opts.Now()
	res.transition(StatusRunning)
	defer func() { res.Duration = r.opts.Now().Sub(start) }()

	r.logger.Info("scenario started", "scenario", sc.Name, "steps", len(sc.Steps))

	if reset {
		if rs, ok := r.target.(Resetter); ok {
			if err := rs.Reset(ctx); err != nil {
				se := &StepError{Kind: classify(ctx, ActionReset, err), Index: 0, Action: ActionReset, Message: err.Error(), Err: err}
				r.finish(res, sc, se)
				return se
			}
		}
	}

	for j, step := range sc.Steps {
		ev, se := r.execStep(ctx, j+1, step)
		res.Steps = append(res.Steps, ev)
		if se != nil {
			r.finish(res, sc, se)
			return se
		}
	}

	r.finish(res, sc, nil)
	return nil
}

func (r *Runner) finish(res *ScenarioResult, sc *Scenario, se *StepError) {
	switch {
	case se == nil:
		res.transition(StatusPassed)
	case se.Kind == KindAborted:
		res.transition(StatusSkipped)
		res.FailedStep = se.Index
		res.ErrorKind = se.Kind
		res.FailureReason = fmt.Sprintf("aborted: %v", se)
	default:
		res.transition(StatusFailed)
		res.FailedStep = se.Index
		res.ErrorKind = se.Kind
		res.FailureReason = se.Error()
	}

	r.logger.Info("scenario finished",
		"scenario", sc.Name,
		"status", res.Status,
		"failed_step", res.FailedStep,
		"error_kind", res.ErrorKind,
	)
}

// execStep runs one step and records it.
func (r *Runner) execStep(ctx context.Context, index int, step Step) (StepEvent, *StepError) {
	ev := StepEvent{
		Seq:     r.opts.Clock.Next(),
		Index:   index,
		Action:  step.Kind,
		Target:  step.Target(),
		Outcome: OutcomeOK,
	}

	r.logger.Debug("step started", "index", index, "step", step.Describe())

	start := r.opts.Now()
	observed, err := r.perform(ctx, step)
	ev.Duration = r.opts.Now().Sub(start)
	ev.Observed = observed

	if err == nil {
		return ev, nil
	}

	se := &StepError{
		Kind:    classify(ctx, step.Kind, err),
		Index:   index,
		Action:  step.Kind,
		Message: err.Error(),
		Err:     err,
	}
	ev.Outcome = OutcomeError
	ev.Kind = se.Kind
	ev.Message = se.Message

	r.logger.Debug("step failed", "index", index, "kind", se.Kind, "error", err)
	return ev, se
}

// perform dispatches a step to the target. The returned string is the text
// observed by text steps.
func (r *Runner) perform(ctx context.Context, step Step) (string, error) {
	switch step.Kind {
	case ActionWaitVisible:
		return "", r.target.WaitVisible(ctx, step.Selector, r.timeout(step))

	case ActionAssertVisible:
		err := r.target.WaitVisible(ctx, step.Selector, r.timeout(step))
		if errors.Is(err, ErrElementNotFound) && ctx.Err() == nil {
			return "", &AssertionError{
				Action:   step.Kind,
				Selector: step.Selector,
				Expected: "element visible",
				Actual:   fmt.Sprintf("not visible within %s", r.timeout(step)),
			}
		}
		return "", err

	case ActionWaitTextEquals, ActionWaitTextContains:
		return r.waitText(ctx, step)

	case ActionPause:
		r.logger.Debug("fixed pause", "duration", step.Duration)
		return "", sleep(ctx, step.Duration)
	}

	// Remaining actions are single calls bounded by the wait timeout.
	sctx, cancel := context.WithTimeout(ctx, r.opts.WaitTimeout)
	defer cancel()

	switch step.Kind {
	case ActionClick:
		return "", r.target.Click(sctx, step.Selector)
	case ActionSendKeys:
		return "", r.target.SendKeys(sctx, step.Selector, step.Text)
	case ActionExecuteScript:
		return "", r.target.ExecuteScript(sctx, step.Code)
	case ActionOpenFile:
		return "", r.target.OpenFile(sctx, step.Path)
	case ActionAddFile:
		return "", r.target.AddFile(sctx, step.Path, step.Content)
	case ActionAssertTextEquals, ActionAssertTextContains:
		text, err := r.target.Text(sctx, step.Selector)
		if err != nil {
			return "", err
		}
		return text, checkText(step, text)
	default:
		return "", fmt.Errorf("unsupported action %q", step.Kind)
	}
}

// waitText polls the element's text until it matches. An element that never
// appears is ElementNotFound; one that appears with the wrong text is an
// assertion failure carrying the last observed text.
func (r *Runner) waitText(ctx context.Context, step Step) (string, error) {
	var (
		last    string
		found   bool
		lastErr error
	)
	err := Poll(ctx, r.timeout(step), r.opts.PollInterval, func(pctx context.Context) (bool, error) {
		text, err := r.target.Text(pctx, step.Selector)
		switch {
		case err == nil:
			found = true
			last = text
			lastErr = checkText(step, text)
			return lastErr == nil, nil
		case errors.Is(err, ErrElementNotFound), errors.Is(err, ErrStaleElement):
			return false, nil
		case pctx.Err() != nil && ctx.Err() == nil:
			// The poll deadline hit mid-call; let Poll report the timeout.
			return false, nil
		default:
			return false, err
		}
	})

	if errors.Is(err, ErrPollTimeout) {
		if !found {
			return "", fmt.Errorf("%s not found within %s: %w", step.Selector, r.timeout(step), ErrElementNotFound)
		}
		if ae, ok := lastErr.(*AssertionError); ok {
			ae.Actual += fmt.Sprintf(" (after %s)", r.timeout(step))
		}
		return last, lastErr
	}
	return last, err
}

func (r *Runner) timeout(step Step) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	return r.opts.WaitTimeout
}
