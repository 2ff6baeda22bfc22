// Package filestore tracks the documents open in the editor.
//
// A document is either loaded, holding the buffer text, or pending: a
// placeholder the editor has registered but not yet read. Pending documents
// expose no content, so consumers fall back to the file on disk until a
// Loaded event arrives.
package filestore

import (
	"slices"
	"sync"
	"time"

	"github.com/dshills/tasktrack/internal/project/vfs"
)

// State is the load state of a Document.
type State int

const (
	// StatePending is a placeholder without content.
	StatePending State = iota
	// StateLoaded holds buffer content.
	StateLoaded
)

// String returns the state name.
func (s State) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "pending"
}

// Document is an open editor buffer.
type Document struct {
	mu sync.RWMutex

	path        string
	state       State
	lines       []string
	version     int64
	dirty       bool
	closed      bool
	modifiedAt  time.Time
	diskModTime time.Time
	now         func() time.Time
}

func newPendingDocument(path string, now func() time.Time) *Document {
	return &Document{path: path, now: now}
}

// Path returns the absolute path of the document.
func (d *Document) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// State returns the load state.
func (d *Document) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// IsLoaded reports whether the document holds content.
func (d *Document) IsLoaded() bool {
	return d.State() == StateLoaded
}

// Lines returns the buffer lines, or false while the document is pending.
// The returned slice must not be modified.
func (d *Document) Lines() ([]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state != StateLoaded {
		return nil, false
	}
	return d.lines, true
}

// Content returns the buffer text joined with newlines.
func (d *Document) Content() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return vfs.JoinLines(d.lines)
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.lines)
}

// Version is incremented on each content change.
func (d *Document) Version() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// ModifiedAt is when the buffer content last changed, in UTC.
func (d *Document) ModifiedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.modifiedAt
}

// DiskModTime is the file modification time when last loaded or saved.
func (d *Document) DiskModTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.diskModTime
}

// IsDirty reports unsaved changes.
func (d *Document) IsDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dirty
}

// IsClosed reports whether the document has been closed.
func (d *Document) IsClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// load fills a document from disk content.
func (d *Document) load(content []byte, diskModTime time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lines = vfs.SplitLines(vfs.StripBOM(content))
	d.state = StateLoaded
	d.version++
	d.dirty = false
	d.diskModTime = diskModTime
	d.modifiedAt = diskModTime
}

// setContent replaces the buffer text. It reports whether the text changed.
func (d *Document) setContent(content []byte) bool {
	lines := vfs.SplitLines(content)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateLoaded && slices.Equal(d.lines, lines) {
		return false
	}
	d.lines = lines
	d.state = StateLoaded
	d.version++
	d.dirty = true
	d.modifiedAt = d.now().UTC()
	return true
}

func (d *Document) markSaved(diskModTime time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = false
	d.diskModTime = diskModTime
}

func (d *Document) setPath(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
}

func (d *Document) markClosed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}
