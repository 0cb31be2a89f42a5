package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/termcheck/internal/harness"
)

// LoadError is a suite that could not be found or loaded.
type LoadError struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// isSuiteFile reports whether path has a suite extension.
func isSuiteFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// FindSuiteFiles expands the given paths into suite files. Directories are
// walked recursively; files are taken as given regardless of extension.
// The result is sorted and free of duplicates.
func FindSuiteFiles(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: p, Message: "no such file or directory"}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Path: p, Message: err.Error()}
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				// testdata and hidden directories hold fixtures, not suites.
				if path != p && (d.Name() == "testdata" || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if isSuiteFile(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Path: p, Message: err.Error()}
		}
	}

	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no suite files found in %s", strings.Join(paths, ", "))}
	}
	sort.Strings(files)
	return files, nil
}

// loadSuite wraps harness.LoadSuite errors in a LoadError.
func loadSuite(path string) (*harness.Suite, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "suite file not found"}
	}
	suite, err := harness.LoadSuite(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: err.Error()}
	}
	return suite, nil
}
