package harness

import (
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText prepares captured console text for comparison: ANSI escape
// sequences are removed, line endings unified, trailing whitespace dropped
// from every line and the result NFC normalized and trimmed.
func NormalizeText(s string) string {
	s = stripansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(norm.NFC.String(s))
}

// TextEquals compares normalized texts.
func TextEquals(actual, expected string) bool {
	return NormalizeText(actual) == NormalizeText(expected)
}

// TextContains reports whether normalized actual contains normalized sub.
// An empty substring always matches.
func TextContains(actual, sub string) bool {
	return strings.Contains(NormalizeText(actual), NormalizeText(sub))
}

// TextDiff renders a character-level diff between expected and actual,
// marking deletions as [-...-] and insertions as {+...+}.
func TextDiff(expected, actual string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(NormalizeText(expected), NormalizeText(actual), false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-")
			b.WriteString(d.Text)
			b.WriteString("-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+")
			b.WriteString(d.Text)
			b.WriteString("+}")
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
