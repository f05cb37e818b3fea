package common

import (
	"errors"
	"fmt"
)

// Compression error types
var (
	ErrMalformedDocument     = errors.New("malformed document")
	ErrImageCodec            = errors.New("image codec failure")
	ErrSizeTargetUnreachable = errors.New("size target unreachable")
	ErrInputDirMissing       = errors.New("input directory does not exist")
	ErrNoPDFFiles            = errors.New("no PDF files found")
	ErrInvalidConfig         = errors.New("invalid configuration")
)

// CompressionError represents compression-specific errors
type CompressionError struct {
	Operation string
	FilePath  string
	Err       error
}

func (e *CompressionError) Error() string {
	if e.FilePath != "" {
		return fmt.Sprintf("compression %s failed for file %s: %v", e.Operation, e.FilePath, e.Err)
	}
	return fmt.Sprintf("compression %s failed: %v", e.Operation, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

// NewCompressionError creates a new compression error
func NewCompressionError(operation, filePath string, err error) *CompressionError {
	return &CompressionError{
		Operation: operation,
		FilePath:  filePath,
		Err:       err,
	}
}

// MalformedDocumentError wraps err so that it matches ErrMalformedDocument
// while keeping the underlying parser message.
func MalformedDocumentError(operation, filePath string, err error) *CompressionError {
	return NewCompressionError(operation, filePath, fmt.Errorf("%w: %v", ErrMalformedDocument, err))
}
