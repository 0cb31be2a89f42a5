package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when captured output does not match.
// It includes enough context to debug the failure without re-running.
type AssertionError struct {
	Action   ActionKind // Step that asserted
	Selector string     // Locator that was read
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Diff     string     // Character diff for equality checks
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s %s\n", e.Action, e.Selector)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "\n  Diff: %s", e.Diff)
	}
	return buf.String()
}

// checkText compares captured text against a step's expectation.
// Returns nil on match.
func checkText(step Step, actual string) error {
	switch step.Kind {
	case ActionAssertTextEquals, ActionWaitTextEquals:
		if TextEquals(actual, step.Expected) {
			return nil
		}
		return &AssertionError{
			Action:   step.Kind,
			Selector: step.Selector,
			Expected: fmt.Sprintf("text %q", NormalizeText(step.Expected)),
			Actual:   fmt.Sprintf("text %q", NormalizeText(actual)),
			Diff:     TextDiff(step.Expected, actual),
		}
	case ActionAssertTextContains, ActionWaitTextContains:
		if TextContains(actual, step.Expected) {
			return nil
		}
		return &AssertionError{
			Action:   step.Kind,
			Selector: step.Selector,
			Expected: fmt.Sprintf("text containing %q", NormalizeText(step.Expected)),
			Actual:   fmt.Sprintf("text %q", NormalizeText(actual)),
		}
	default:
		return fmt.Errorf("%s is not a text assertion", step.Kind)
	}
}
