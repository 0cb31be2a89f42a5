package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/termcheck/internal/harness"
)

// RunMeta is run context the report itself does not carry.
type RunMeta struct {
	SuitePath string
	Driver    string
}

// WriteReport stores a complete report in a single transaction. Writing a
// run ID that already exists is an error: reports are immutable once stored.
func (s *Store) WriteReport(ctx context.Context, report *harness.Report, meta RunMeta) error {
	if report == nil {
		return fmt.Errorf("write report: nil report")
	}
	if report.RunID == "" {
		return fmt.Errorf("write report: run ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write report: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, suite, suite_path, driver, started_at, finished_at, passed, failed, skipped, aborted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		report.Suite,
		meta.SuitePath,
		meta.Driver,
		report.StartedAt.UnixNano(),
		report.FinishedAt.UnixNano(),
		report.Passed,
		report.Failed,
		report.Skipped,
		report.Aborted,
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", report.RunID, err)
	}

	for i, res := range report.Results {
		if err := writeScenario(ctx, tx, report.RunID, i, res); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write report: commit: %w", err)
	}
	return nil
}

func writeScenario(ctx context.Context, tx *sql.Tx, runID string, pos int, res harness.ScenarioResult) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO scenario_results
		(run_id, position, name, status, failure_reason, failed_step, error_kind, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		pos,
		res.Name,
		string(res.Status),
		res.FailureReason,
		res.FailedStep,
		string(res.ErrorKind),
		int64(res.Duration),
	)
	if err != nil {
		return fmt.Errorf("write scenario %q: %w", res.Name, err)
	}

	for _, ev := range res.Steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO step_events
			(run_id, scenario_position, seq, step_index, action, target, outcome, error_kind, message, observed, duration_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			pos,
			ev.Seq,
			ev.Index,
			string(ev.Action),
			ev.Target,
			ev.Outcome,
			string(ev.Kind),
			ev.Message,
			ev.Observed,
			int64(ev.Duration),
		)
		if err != nil {
			return fmt.Errorf("write step %d of %q: %w", ev.Index, res.Name, err)
		}
	}
	return nil
}
