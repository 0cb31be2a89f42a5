// Package report renders run reports for people: a terminal summary,
// Markdown and sanitised HTML for CI artifacts, and a JSON document for
// tools.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/termcheck/internal/harness"
)

// Status markers used by the text and Markdown renderers.
const (
	markPass = "✓"
	markFail = "✗"
	markSkip = "-"
)

func mark(s harness.Status) string {
	switch s {
	case harness.StatusPassed:
		return markPass
	case harness.StatusFailed:
		return markFail
	default:
		return markSkip
	}
}

// Text writes a per-scenario summary followed by a tally line. With
// verbose set every executed step is listed.
func Text(w io.Writer, r *harness.Report, verbose bool) error {
	var b strings.Builder

	for _, res := range r.Results {
		fmt.Fprintf(&b, "%s %s", mark(res.Status), res.Name)
		if res.Status != harness.StatusSkipped {
			fmt.Fprintf(&b, " (%s)", roundDuration(res.Duration))
		}
		b.WriteString("\n")

		if verbose {
			for _, ev := range res.Steps {
				fmt.Fprintf(&b, "    %d. %s", ev.Index, ev.Action)
				if ev.Target != "" {
					fmt.Fprintf(&b, " %s", ev.Target)
				}
				fmt.Fprintf(&b, " [%s]", ev.Outcome)
				if ev.Observed != "" {
					fmt.Fprintf(&b, " observed %q", harness.NormalizeText(ev.Observed))
				}
				b.WriteString("\n")
			}
		}

		if res.FailureReason != "" {
			for _, line := range strings.Split(res.FailureReason, "\n") {
				fmt.Fprintf(&b, "  %s\n", strings.TrimSpace(line))
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(Summary(r))
	b.WriteString("\n")
	if r.Aborted != "" {
		fmt.Fprintf(&b, "Run stopped early: %s\n", r.Aborted)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Summary returns the one-line tally, e.g. "10 passed, 1 failed, 0 skipped (11 total)".
func Summary(r *harness.Report) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)", r.Passed, r.Failed, r.Skipped, r.Total())
}

func roundDuration(d time.Duration) time.Duration {
	if d < time.Millisecond {
		return d
	}
	return d.Round(time.Millisecond)
}
