package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/termcheck/internal/harness"
)

// Markdown renders the report as a Markdown document: a header, a
// scenario table and a section per failed scenario.
func Markdown(r *harness.Report) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# %s\n\n", escapeInline(r.Suite))
	fmt.Fprintf(&b, "Run `%s`", r.RunID)
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&b, " started %s", r.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(&b, ": **%s**\n\n", Summary(r))
	if r.Aborted != "" {
		fmt.Fprintf(&b, "> Run stopped early: %s\n\n", escapeInline(r.Aborted))
	}

	b.WriteString("| | Scenario | Status | Failed step | Error | Duration |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, res := range r.Results {
		failed := ""
		if res.FailedStep > 0 {
			failed = fmt.Sprint(res.FailedStep)
		}
		dur := ""
		if res.Status != harness.StatusSkipped {
			dur = roundDuration(res.Duration).String()
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			mark(res.Status), escapeCell(res.Name), res.Status, failed, res.ErrorKind, dur)
	}

	for _, res := range r.Results {
		if res.Status != harness.StatusFailed {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", escapeInline(res.Name))
		for _, ev := range res.Steps {
			target := ""
			if ev.Target != "" {
				target = " `" + strings.ReplaceAll(ev.Target, "`", "'") + "`"
			}
			fmt.Fprintf(&b, "%d. %s%s: %s\n", ev.Index, ev.Action, target, ev.Outcome)
		}
		if res.FailureReason != "" {
			b.WriteString("\n```\n")
			b.WriteString(strings.ReplaceAll(res.FailureReason, "```", "'''"))
			b.WriteString("\n```\n")
		}
	}

	return b.Bytes()
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
	"\n", " ",
)

func escapeInline(s string) string {
	return inlineEscaper.Replace(s)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(escapeInline(s), "|", `\|`)
}
