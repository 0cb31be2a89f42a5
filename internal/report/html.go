package report

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"

	"github.com/roach88/termcheck/internal/harness"
)

// HTML renders the Markdown report to a standalone HTML page. Scenario
// names, selectors and captured text come from the page under test, so the
// rendered body is passed through a UGC sanitising policy.
func HTML(r *harness.Report) []byte {
	body := blackfriday.Run(Markdown(r), blackfriday.WithExtensions(blackfriday.CommonExtensions))
	safe := bluemonday.UGCPolicy().SanitizeBytes(body)

	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>")
	b.WriteString(html.EscapeString(r.Suite))
	b.WriteString("</title>\n")
	b.WriteString(stylesheet)
	b.WriteString("</head>\n<body>\n")
	b.Write(safe)
	b.WriteString("</body>\n</html>\n")
	return b.Bytes()
}

const stylesheet = `<style>
body { font-family: sans-serif; max-width: 60em; margin: 2em auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3em 0.6em; text-align: left; }
pre { background: #f6f8fa; padding: 0.8em; overflow-x: auto; }
</style>
`
