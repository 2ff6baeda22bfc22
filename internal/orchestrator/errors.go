package orchestrator

import (
	"errors"
	"fmt"
)

// Orchestrator errors.
var (
	// ErrAlreadyRunning indicates Start was called on a started orchestrator.
	ErrAlreadyRunning = errors.New("orchestrator already running")

	// ErrNotRunning indicates an operation that needs a running orchestrator.
	ErrNotRunning = errors.New("orchestrator not running")

	// ErrInvalidOptions indicates a required option is missing.
	ErrInvalidOptions = errors.New("invalid orchestrator options")

	// ErrNoTask indicates a nil task was passed.
	ErrNoTask = errors.New("no task")
)

// InitError reports a component that failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
