package cli

import (
	"fmt"
	"os"
	"path/filepath"
)

// scenarioFiles resolves path to the CUE scenario files it names. A file
// path returns itself; a directory returns its *.cue entries in name
// order. Subdirectories are not walked.
func scenarioFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("path not found: %s", path))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("stat %s", path), err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	files, err := filepath.Glob(filepath.Join(path, "*.cue"))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "scan scenarios", err)
	}
	if len(files) == 0 {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("no CUE files found in %s", path))
	}
	return files, nil
}
