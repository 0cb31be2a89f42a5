package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/termcheck/internal/harness"
)

// RunSummary is the runs row of a stored report.
type RunSummary struct {
	ID         string    `json:"id"`
	Suite      string    `json:"suite"`
	SuitePath  string    `json:"suite_path,omitempty"`
	Driver     string    `json:"driver,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Aborted    string    `json:"aborted,omitempty"`
}

// Run is a stored report together with its metadata.
type Run struct {
	Summary RunSummary      `json:"summary"`
	Report  *harness.Report `json:"report"`
}

const runColumns = `id, suite, suite_path, driver, started_at, finished_at, passed, failed, skipped, aborted`

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run. Filtering by suite is optional.
//
// Returns an empty slice (not nil) when nothing is stored.
func (s *Store) ListRuns(ctx context.Context, suite string, limit int) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if suite != "" {
		query += ` WHERE suite = ?`
		args = append(args, suite)
	}
	query += ` ORDER BY started_at DESC, id COLLATE BINARY DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		sum, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun loads a stored report by run ID. Returns an error wrapping
// ErrRunNotFound for unknown IDs.
func (s *Store) ReadRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	sum, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.loadRun(ctx, sum)
}

// LatestRun loads the most recent run of a suite.
func (s *Store) LatestRun(ctx context.Context, suite string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE suite = ?
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, suite)
	sum, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("suite %q: %w", suite, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.loadRun(ctx, sum)
}

func (s *Store) loadRun(ctx context.Context, sum RunSummary) (*Run, error) {
	results, err := s.readScenarios(ctx, sum.ID)
	if err != nil {
		return nil, err
	}
	if err := s.readSteps(ctx, sum.ID, results); err != nil {
		return nil, err
	}

	return &Run{
		Summary: sum,
		Report: &harness.Report{
			RunID:      sum.ID,
			Suite:      sum.Suite,
			StartedAt:  sum.StartedAt,
			FinishedAt: sum.FinishedAt,
			Results:    results,
			Passed:     sum.Passed,
			Failed:     sum.Failed,
			Skipped:    sum.Skipped,
			Aborted:    sum.Aborted,
		},
	}, nil
}

func (s *Store) readScenarios(ctx context.Context, runID string) ([]harness.ScenarioResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, status, failure_reason, failed_step, error_kind, duration_ns
		FROM scenario_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer rows.Close()

	results := []harness.ScenarioResult{}
	for rows.Next() {
		var (
			res          harness.ScenarioResult
			status, kind string
			dur          int64
		)
		if err := rows.Scan(&res.Name, &status, &res.FailureReason, &res.FailedStep, &kind, &dur); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		res.Status = harness.Status(status)
		res.ErrorKind = harness.ErrorKind(kind)
		res.Duration = time.Duration(dur)
		res.Steps = []harness.StepEvent{}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenarios: %w", err)
	}
	return results, nil
}

// readSteps attaches step events to results, which must be indexed by
// scenario position.
func (s *Store) readSteps(ctx context.Context, runID string, results []harness.ScenarioResult) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_position, seq, step_index, action, target, outcome, error_kind, message, observed, duration_ns
		FROM step_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pos          int
			ev           harness.StepEvent
			action, kind string
			dur          int64
		)
		if err := rows.Scan(&pos, &ev.Seq, &ev.Index, &action, &ev.Target, &ev.Outcome, &kind, &ev.Message, &ev.Observed, &dur); err != nil {
			return fmt.Errorf("scan step: %w", err)
		}
		if pos < 0 || pos >= len(results) {
			return fmt.Errorf("step seq %d references missing scenario position %d", ev.Seq, pos)
		}
		ev.Action = harness.ActionKind(action)
		ev.Kind = harness.ErrorKind(kind)
		ev.Duration = time.Duration(dur)
		results[pos].Steps = append(results[pos].Steps, ev)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate steps: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunSummary, error) {
	var (
		sum             RunSummary
		started, finish int64
	)
	err := row.Scan(&sum.ID, &sum.Suite, &sum.SuitePath, &sum.Driver, &started, &finish,
		&sum.Passed, &sum.Failed, &sum.Skipped, &sum.Aborted)
	if errors.Is(err, sql.ErrNoRows) {
		return sum, err
	}
	if err != nil {
		return sum, fmt.Errorf("scan run: %w", err)
	}
	sum.StartedAt = time.Unix(0, started).UTC()
	sum.FinishedAt = time.Unix(0, finish).UTC()
	return sum, nil
}
