// Package store persists run reports in SQLite so past runs can be listed,
// inspected and compared.
//
// A run is stored as three tables:
//   - runs: one row per report with the tally and timestamps
//   - scenario_results: one row per scenario, keyed by document position
//   - step_events: one row per executed step, keyed by the run's logical seq
//
// Reads always order by position and seq, never by timestamps, so a report
// read back is structurally identical to the one written.
//
// # Database Configuration
//
//   - WAL mode: history reads while a run is being written
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: deleting a run removes its scenarios and steps
package store
