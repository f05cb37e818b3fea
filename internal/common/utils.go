package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID generates a new UUID string
func GenerateUUID() string {
	return uuid.New().String()
}

// IsPDFName reports whether name carries a .pdf suffix, ignoring case
func IsPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), PDFExtension)
}

// FileSize returns the on-disk size of path in bytes
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// KB converts a byte count to kilobytes for display
func KB(size int64) float64 {
	return float64(size) / BytesPerKB
}

// ReplaceFile writes a file through write into a temporary sibling of dst and
// renames it over dst once write succeeds. On failure dst is left untouched
// and the temporary file is removed.
func ReplaceFile(dst string, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, DefaultFilePermissions); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}
	return nil
}
