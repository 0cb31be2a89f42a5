package report

import (
	"fmt"

	"github.com/roach88/termcheck/internal/harness"
)

// Change is a scenario whose status differs between two runs.
type Change struct {
	Scenario string         `json:"scenario"`
	Before   harness.Status `json:"before,omitempty"` // empty when the scenario is new
	After    harness.Status `json:"after"`
}

// Regression reports whether a previously passing scenario no longer passes.
func (c Change) Regression() bool {
	return c.Before == harness.StatusPassed && c.After != harness.StatusPassed
}

func (c Change) String() string {
	before := string(c.Before)
	if before == "" {
		before = "new"
	}
	return fmt.Sprintf("%s: %s -> %s", c.Scenario, before, c.After)
}

// Compare lists status changes from prev to cur in cur's scenario order.
// Scenarios missing from cur are not reported.
func Compare(prev, cur *harness.Report) []Change {
	before := make(map[string]harness.Status, len(prev.Results))
	for _, res := range prev.Results {
		before[res.Name] = res.Status
	}

	changes := []Change{}
	for _, res := range cur.Results {
		was, ok := before[res.Name]
		if ok && was == res.Status {
			continue
		}
		changes = append(changes, Change{Scenario: res.Name, Before: was, After: res.Status})
	}
	return changes
}
