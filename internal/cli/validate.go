package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/termcheck/internal/harness"
)

// SuiteCheck is the validation outcome of one suite file.
type SuiteCheck struct {
	Path      string            `json:"path"`
	Suite     string            `json:"suite,omitempty"`
	Valid     bool              `json:"valid"`
	Scenarios int               `json:"scenarios,omitempty"`
	Steps     int               `json:"steps,omitempty"`
	Error     *LoadError        `json:"error,omitempty"`
	Warnings  []harness.Warning `json:"warnings,omitempty"`
}

// ValidationResult holds validation results for every file checked.
type ValidationResult struct {
	Valid bool         `json:"valid"`
	Files []SuiteCheck `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check suite files without running them",
		Long: `Load and validate suite files without touching a target.

Directories are searched recursively for .yaml, .yml and .cue files.
Structural errors make a suite invalid. Lint warnings (fixed pauses,
assertions racing asynchronous output) are reported but do not fail.

Exit codes:
  0 - All suites valid
  1 - One or more suites invalid
  2 - Command error (path not found, no suites)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	files, err := FindSuiteFiles(paths)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			_ = formatter.Error(le.Code, le.Message, le.Path)
		} else {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "no suites to validate", err)
	}
	formatter.VerboseLog("Found %d suite file(s)", len(files))

	result := ValidationResult{Valid: true, Files: make([]SuiteCheck, 0, len(files))}
	for _, path := range files {
		check := checkSuite(path)
		if !check.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, check)
	}

	if err := formatter.Emit(result, func(w io.Writer) error {
		return writeValidationText(w, result)
	}); err != nil {
		return err
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "one or more suites are invalid")
	}
	return nil
}

func checkSuite(path string) SuiteCheck {
	check := SuiteCheck{Path: path}
	suite, err := loadSuite(path)
	if err != nil {
		var le *LoadError
		if !errors.As(err, &le) {
			le = &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
		}
		check.Error = le
		return check
	}

	check.Valid = true
	check.Suite = suite.Name
	check.Scenarios = len(suite.Scenarios)
	for _, sc := range suite.Scenarios {
		check.Steps += len(sc.Steps)
	}
	check.Warnings = harness.Lint(suite)
	return check
}

func writeValidationText(w io.Writer, result ValidationResult) error {
	invalid := 0
	for _, c := range result.Files {
		if !c.Valid {
			invalid++
			fmt.Fprintf(w, "✗ %s\n  %s\n", c.Path, c.Error.Message)
			continue
		}
		fmt.Fprintf(w, "✓ %s (%s: %d scenarios, %d steps)\n", c.Path, c.Suite, c.Scenarios, c.Steps)
		for _, warn := range c.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warn)
		}
	}

	if invalid == 0 {
		_, err := fmt.Fprintf(w, "\nAll %d suite(s) valid.\n", len(result.Files))
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d of %d suite(s) invalid.\n", invalid, len(result.Files))
	return err
}
