package application

import (
	"errors"
	"fmt"
)

// Application error types
var (
	ErrOutputDirUnavailable = errors.New("output directory could not be created")
	ErrRunInterrupted       = errors.New("run interrupted")
)

// FileError marks a document that could not be processed. The run carries on
// with the next document.
type FileError struct {
	Filename string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("could not process file '%s': %v", e.Filename, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// NewFileError creates a new file error
func NewFileError(filename string, err error) *FileError {
	return &FileError{
		Filename: filename,
		Err:      err,
	}
}
