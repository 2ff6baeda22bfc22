// Package tasklist keeps the live set of annotation tasks for tracked files
// and reconciles it against tree, buffer and file-system changes.
package tasklist

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/tasktrack/internal/scan"
)

// Errors returned by the package.
var (
	ErrDisposed    = errors.New("task manager disposed")
	ErrInvalidPath = errors.New("invalid tracked path")
)

// PathError records a rejected path.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ValidatePath rejects paths that cannot be tracked: empty, relative, or
// host placeholders such as untitled buffers and URIs.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return &PathError{Op: "track", Path: path, Err: ErrInvalidPath}
	case strings.Contains(path, "://"), strings.ContainsAny(path, "<>|?*\x00"):
		return &PathError{Op: "track", Path: path, Err: fmt.Errorf("%w: placeholder", ErrInvalidPath)}
	case !filepath.IsAbs(path):
		return &PathError{Op: "track", Path: path, Err: fmt.Errorf("%w: not absolute", ErrInvalidPath)}
	}
	return nil
}

// Task is one annotation found in a file. Tasks are immutable; within a
// generation they are identified by pointer.
type Task struct {
	Token    string
	Priority scan.Priority
	Path     string
	// Line is 1-based.
	Line int
	Body string
	// Projects is the comma-separated list of enclosing project captions.
	Projects string
}

// Key identifies a task across generations, for restoring a selection.
type Key struct {
	FileName string
	Body     string
}

// FileName returns the base name of the task's file.
func (t *Task) FileName() string {
	return filepath.Base(t.Path)
}

// Key returns the cross-generation identity of t.
func (t *Task) Key() Key {
	return Key{FileName: t.FileName(), Body: t.Body}
}

// ExclusionText is the text matched against exact-comment exclusions.
func (t *Task) ExclusionText() string {
	return t.FileName() + ": " + t.Body
}

// String formats t the way the CLI prints it.
func (t *Task) String() string {
	return fmt.Sprintf("%s:%d: %s %s", t.Path, t.Line, t.Token, t.Body)
}

// same reports whether t and o describe the same annotation.
func (t *Task) same(o *Task) bool {
	return *t == *o
}

// Diff is a set of task additions and removals.
type Diff struct {
	Added   []*Task
	Removed []*Task
}

// Empty reports whether d carries no change.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Merge folds o into d. A task added and then removed before the diff is
// consumed disappears from both lists, and a task removed and then added
// back is likewise dropped.
func (d *Diff) Merge(o Diff) {
	if o.Empty() {
		return
	}

	removed := make(map[*Task]bool, len(o.Removed))
	for _, t := range o.Removed {
		removed[t] = true
	}
	added := make(map[*Task]bool, len(o.Added))
	for _, t := range o.Added {
		added[t] = true
	}

	cancelled := make(map[*Task]bool)
	d.Added = filterTasks(d.Added, func(t *Task) bool {
		if removed[t] {
			cancelled[t] = true
			return false
		}
		return true
	})
	d.Removed = filterTasks(d.Removed, func(t *Task) bool {
		if added[t] {
			cancelled[t] = true
			return false
		}
		return true
	})

	for _, t := range o.Added {
		if !cancelled[t] {
			d.Added = append(d.Added, t)
		}
	}
	for _, t := range o.Removed {
		if !cancelled[t] {
			d.Removed = append(d.Removed, t)
		}
	}
}

func filterTasks(tasks []*Task, keep func(*Task) bool) []*Task {
	out := tasks[:0]
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
