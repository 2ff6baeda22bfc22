package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestPathError(t *testing.T) {
	err := &PathError{
		Op:   "open",
		Path: "/test/file.txt",
		Err:  ErrNotFound,
	}

	if got := err.Error(); got != "open /test/file.txt: not found" {
		t.Errorf("Error() = %q, want 'open /test/file.txt: not found'", got)
	}
	if err.Unwrap() != ErrNotFound {
		t.Error("Unwrap() should return underlying error")
	}
}

func TestNewPathError(t *testing.T) {
	err := NewPathError("read", "/test.txt", ErrInvalidPath)
	if err.Op != "read" || err.Path != "/test.txt" || err.Err != ErrInvalidPath {
		t.Errorf("NewPathError = %+v", err)
	}
}

func TestHelpers(t *testing.T) {
	wrapped := fmt.Errorf("closing: %w", NewPathError("close", "/a", ErrDocumentDirty))

	if !IsDirty(wrapped) {
		t.Error("IsDirty should see through wrapping")
	}
	if IsNotFound(wrapped) {
		t.Error("IsNotFound should be false")
	}
	if !IsNotFound(NewPathError("stat", "/b", ErrNotFound)) {
		t.Error("IsNotFound should be true")
	}

	var pe *PathError
	if !errors.As(wrapped, &pe) || pe.Path != "/a" {
		t.Errorf("errors.As = %+v", pe)
	}
}
