// Package errors defines the error values shared by the project packages.
package errors

import (
	"errors"
	"fmt"
)

// Standard errors returned by project packages.
var (
	// ErrNotFound indicates a file or directory was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPath indicates a path that is empty, relative, or a placeholder.
	ErrInvalidPath = errors.New("invalid path")

	// ErrIsDirectory indicates the path is a directory, not a file.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrReadOnly indicates the file system does not accept writes.
	ErrReadOnly = errors.New("file is read-only")

	// ErrFileTooLarge indicates the file exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrBinaryFile indicates the file content is not text.
	ErrBinaryFile = errors.New("binary file")

	// ErrDocumentNotOpen indicates no buffer is open for the path.
	ErrDocumentNotOpen = errors.New("document not open")

	// ErrDocumentDirty indicates the buffer has unsaved changes.
	ErrDocumentDirty = errors.New("document has unsaved changes")

	// ErrAlreadyOpen indicates a buffer is already open for the path.
	ErrAlreadyOpen = errors.New("document already open")

	// ErrDocumentPending indicates the buffer has not loaded its content yet.
	ErrDocumentPending = errors.New("document not loaded")
)

// PathError records an error and the operation and path that caused it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError creates a PathError.
func NewPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDirty reports whether err is or wraps ErrDocumentDirty.
func IsDirty(err error) bool {
	return errors.Is(err, ErrDocumentDirty)
}
