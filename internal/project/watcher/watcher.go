// Package watcher reports on-disk changes to individual files and to
// directory trees.
//
// File registrations are cheap: the watcher subscribes to the parent
// directory once, however many files in it are registered, and filters
// directory events down to the registered names. A file that is deleted and
// recreated therefore keeps reporting. Tree registrations watch every
// non-ignored directory below a root so that structural changes (new files,
// deletions, renames) can be observed.
package watcher

import (
	"errors"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrNotWatching     = errors.New("path is not being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed away.
	OpRename
	// OpChmod indicates file attributes were changed.
	OpChmod
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Gone reports whether the path no longer exists under its name after op.
func (op Op) Gone() bool {
	return op&(OpRemove|OpRename) != 0
}

// Event represents a file system change event.
type Event struct {
	// Path is the absolute path of the affected file or directory.
	Path string

	// Op is the operation that occurred.
	Op Op

	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// Watcher monitors file system changes.
type Watcher interface {
	// WatchFile registers a single file. The file need not exist yet but its
	// directory must.
	WatchFile(path string) error

	// UnwatchFile removes a file registration.
	UnwatchFile(path string) error

	// WatchTree watches root and every non-ignored directory below it,
	// including directories created later.
	WatchTree(root string) error

	// UnwatchTree removes a tree registration.
	UnwatchTree(root string) error

	// Events returns the channel of change events.
	// The channel is closed when the watcher is closed.
	Events() <-chan Event

	// Errors returns the channel of watcher errors.
	// The channel is closed when the watcher is closed.
	Errors() <-chan error

	// IsWatching reports whether path is a registered file or tree root.
	IsWatching(path string) bool

	// WatchedPaths returns the registered files and tree roots.
	WatchedPaths() []string

	// Close stops the watcher and releases resources.
	Close() error
}

// EventFilter is a function that filters events.
// Return true to keep the event, false to discard it.
type EventFilter func(event Event) bool

// Config holds watcher configuration options.
type Config struct {
	// BufferSize is the size of the event and error channels.
	// Default: 256
	BufferSize int

	// Ignore excludes directories from tree watches and events below them.
	// Default: DefaultIgnore()
	Ignore *Ignore

	// EventFilter is an optional filter for events.
	EventFilter EventFilter
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
		Ignore:     DefaultIgnore(),
	}
}

// Option configures a watcher.
type Option func(*Config)

// WithBufferSize sets the channel buffer size.
func WithBufferSize(size int) Option {
	return func(c *Config) {
		c.BufferSize = size
	}
}

// WithIgnore sets the ignore rules applied to tree watches.
func WithIgnore(ig *Ignore) Option {
	return func(c *Config) {
		c.Ignore = ig
	}
}

// WithEventFilter sets the event filter.
func WithEventFilter(filter EventFilter) Option {
	return func(c *Config) {
		c.EventFilter = filter
	}
}
