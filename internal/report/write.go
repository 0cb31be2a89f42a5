package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/roach88/termcheck/internal/harness"
)

// Format names accepted by Render.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatJSON     = "json"
)

// FormatForPath picks a format from a file extension.
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported report extension %q (want .md, .html or .json)", filepath.Ext(path))
	}
}

// Render encodes the report in the given format.
func Render(r *harness.Report, format string) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return Markdown(r), nil
	case FormatHTML:
		return HTML(r), nil
	case FormatJSON:
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// WriteFile renders the report in the format implied by path's extension.
func WriteFile(path string, r *harness.Report) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	out, err := Render(r, format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
