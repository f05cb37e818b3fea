package application

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"pdfshrink/internal/common"
)

// ListPDFFiles returns the regular files in dir whose name ends in .pdf in
// any case, sorted by name. Subdirectories are not searched.
func ListPDFFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: '%s'", common.ErrInputDirMissing, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !common.IsPDFName(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in '%s'", common.ErrNoPDFFiles, dir)
	}

	sort.Strings(files)
	return files, nil
}

// OutputPath maps an input document to its location in outputDir. The base
// name is kept, so an existing output of the same name is replaced.
func OutputPath(outputDir, inputPath string) string {
	return filepath.Join(outputDir, filepath.Base(inputPath))
}

// EnsureOutputDir creates outputDir if it does not exist.
func EnsureOutputDir(outputDir string) error {
	if err := os.MkdirAll(outputDir, common.DefaultFilePermissions); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputDirUnavailable, err)
	}
	return nil
}
