// Package workspace models the project tree the task tracker follows: a
// workspace (the solution) holding folders (the projects). A folder owns
// every file below its directory plus any files linked into it explicitly,
// so one file may belong to several folders.
package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/tasktrack/internal/config/notify"
)

// Common errors.
var (
	ErrNoFolders       = errors.New("workspace has no folders")
	ErrFolderNotFound  = errors.New("folder not found in workspace")
	ErrFolderExists    = errors.New("folder already in workspace")
	ErrInvalidPath     = errors.New("invalid folder path")
	ErrWorkspaceClosed = errors.New("workspace is closed")
)

// Folder is one project in the workspace.
type Folder struct {
	// ID identifies the folder across renames.
	ID uuid.UUID
	// Path is the absolute directory path.
	Path string
	// Name is the display caption.
	Name string
	// Files are absolute paths linked into the folder from elsewhere.
	Files []string
	// Exclude holds gitignore-style patterns applied when walking Path.
	Exclude []string
}

func (f Folder) clone() Folder {
	f.Files = slices.Clone(f.Files)
	f.Exclude = slices.Clone(f.Exclude)
	return f
}

// Contains reports whether path lies under the folder directory or is one of
// its linked files.
func (f Folder) Contains(path string) bool {
	return isSubPath(f.Path, path) || slices.Contains(f.Files, path)
}

// ChangeType indicates the type of workspace change.
type ChangeType int

const (
	// ChangeFolderAdded indicates a folder was added.
	ChangeFolderAdded ChangeType = iota
	// ChangeFolderRemoved indicates a folder was removed.
	ChangeFolderRemoved
	// ChangeFolderRenamed indicates a folder caption changed.
	ChangeFolderRenamed
	// ChangeFolderFiles indicates linked files were added or removed.
	ChangeFolderFiles
	// ChangeRenamed indicates the workspace itself was renamed.
	ChangeRenamed
	// ChangeClosed indicates the workspace was closed.
	ChangeClosed
)

// String returns the change name.
func (c ChangeType) String() string {
	switch c {
	case ChangeFolderAdded:
		return "folder-added"
	case ChangeFolderRemoved:
		return "folder-removed"
	case ChangeFolderRenamed:
		return "folder-renamed"
	case ChangeFolderFiles:
		return "folder-files"
	case ChangeRenamed:
		return "renamed"
	case ChangeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ChangeEvent represents a workspace change.
type ChangeEvent struct {
	Type    ChangeType
	Folders []Folder
}

// Workspace is a collection of folders.
type Workspace struct {
	mu      sync.RWMutex
	name    string
	folders []Folder
	closed  bool

	notifier *notify.Notifier[ChangeEvent]
}

// New creates an empty workspace with the given caption.
func New(name string) *Workspace {
	return &Workspace{
		name:     name,
		notifier: notify.New[ChangeEvent](),
	}
}

// NewFromPaths creates a workspace with one folder per path. The workspace
// is named after the first folder.
func NewFromPaths(paths ...string) (*Workspace, error) {
	if len(paths) == 0 {
		return nil, ErrNoFolders
	}

	ws := New("")
	for _, p := range paths {
		f, err := newFolder(p)
		if err != nil {
			return nil, err
		}
		if ws.indexOfPathLocked(f.Path) >= 0 {
			return nil, ErrFolderExists
		}
		ws.folders = append(ws.folders, f)
	}
	ws.name = ws.folders[0].Name
	return ws, nil
}

func newFolder(path string) (Folder, error) {
	if path == "" {
		return Folder{}, ErrInvalidPath
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Folder{}, err
	}
	return Folder{
		ID:   uuid.New(),
		Path: absPath,
		Name: filepath.Base(absPath),
	}, nil
}

// Name returns the workspace caption.
func (w *Workspace) Name() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.name
}

// Rename changes the workspace caption.
func (w *Workspace) Rename(name string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWorkspaceClosed
	}
	w.name = name
	w.mu.Unlock()

	w.notifier.Notify(ChangeEvent{Type: ChangeRenamed})
	return nil
}

// Close closes the workspace. Subscribers receive ChangeClosed.
func (w *Workspace) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.folders = nil
	w.mu.Unlock()

	w.notifier.Notify(ChangeEvent{Type: ChangeClosed})
	w.notifier.Close()
	return nil
}

// IsClosed returns whether the workspace is closed.
func (w *Workspace) IsClosed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.closed
}

// Folders returns a copy of all folders.
func (w *Workspace) Folders() []Folder {
	w.mu.RLock()
	defer w.mu.RUnlock()

	result := make([]Folder, len(w.folders))
	for i, f := range w.folders {
		result[i] = f.clone()
	}
	return result
}

// FolderCount returns the number of folders.
func (w *Workspace) FolderCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.folders)
}

// Folder returns the folder with the given ID.
func (w *Workspace) Folder(id uuid.UUID) (Folder, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if i := w.indexOfIDLocked(id); i >= 0 {
		return w.folders[i].clone(), true
	}
	return Folder{}, false
}

// AddFolder adds a folder for path.
func (w *Workspace) AddFolder(ctx context.Context, path string) (Folder, error) {
	f, err := newFolder(path)
	if err != nil {
		return Folder{}, err
	}
	return f, w.insert(f)
}

// AddFolderWith adds a prepared folder. A zero ID is assigned a new one.
func (w *Workspace) AddFolderWith(ctx context.Context, f Folder) (Folder, error) {
	base, err := newFolder(f.Path)
	if err != nil {
		return Folder{}, err
	}
	if f.ID != uuid.Nil {
		base.ID = f.ID
	}
	if f.Name != "" {
		base.Name = f.Name
	}
	base.Exclude = slices.Clone(f.Exclude)
	for _, p := range f.Files {
		if !filepath.IsAbs(p) {
			return Folder{}, ErrInvalidPath
		}
		base.Files = append(base.Files, filepath.Clean(p))
	}
	return base, w.insert(base)
}

func (w *Workspace) insert(f Folder) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWorkspaceClosed
	}
	if w.indexOfPathLocked(f.Path) >= 0 || w.indexOfIDLocked(f.ID) >= 0 {
		w.mu.Unlock()
		return ErrFolderExists
	}
	w.folders = append(w.folders, f)
	w.mu.Unlock()

	w.notifier.Notify(ChangeEvent{Type: ChangeFolderAdded, Folders: []Folder{f.clone()}})
	return nil
}

// RemoveFolder removes the folder with the given ID.
func (w *Workspace) RemoveFolder(ctx context.Context, id uuid.UUID) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWorkspaceClosed
	}
	idx := w.indexOfIDLocked(id)
	if idx < 0 {
		w.mu.Unlock()
		return ErrFolderNotFound
	}
	removed := w.folders[idx]
	w.folders = slices.Delete(w.folders, idx, idx+1)
	w.mu.Unlock()

	w.notifier.Notify(ChangeEvent{Type: ChangeFolderRemoved, Folders: []Folder{removed}})
	return nil
}

// RenameFolder changes a folder caption.
func (w *Workspace) RenameFolder(id uuid.UUID, name string) error {
	return w.updateFolder(id, ChangeFolderRenamed, func(f *Folder) bool {
		if f.Name == name {
			return false
		}
		f.Name = name
		return true
	})
}

// LinkFile links an absolute file path into a folder.
func (w *Workspace) LinkFile(id uuid.UUID, path string) error {
	if !filepath.IsAbs(path) {
		return ErrInvalidPath
	}
	path = filepath.Clean(path)
	return w.updateFolder(id, ChangeFolderFiles, func(f *Folder) bool {
		if slices.Contains(f.Files, path) {
			return false
		}
		f.Files = append(f.Files, path)
		return true
	})
}

// UnlinkFile removes a linked file from a folder.
func (w *Workspace) UnlinkFile(id uuid.UUID, path string) error {
	path = filepath.Clean(path)
	return w.updateFolder(id, ChangeFolderFiles, func(f *Folder) bool {
		i := slices.Index(f.Files, path)
		if i < 0 {
			return false
		}
		f.Files = slices.Delete(f.Files, i, i+1)
		return true
	})
}

func (w *Workspace) updateFolder(id uuid.UUID, change ChangeType, fn func(*Folder) bool) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWorkspaceClosed
	}
	idx := w.indexOfIDLocked(id)
	if idx < 0 {
		w.mu.Unlock()
		return ErrFolderNotFound
	}
	f := w.folders[idx].clone()
	if !fn(&f) {
		w.mu.Unlock()
		return nil
	}
	w.folders[idx] = f
	w.mu.Unlock()

	w.notifier.Notify(ChangeEvent{Type: change, Folders: []Folder{f.clone()}})
	return nil
}

// ContainingFolders returns every folder that contains path.
func (w *Workspace) ContainingFolders(path string) []Folder {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	var result []Folder
	for _, f := range w.folders {
		if f.Contains(absPath) {
			result = append(result, f.clone())
		}
	}
	return result
}

// IsInWorkspace reports whether any folder contains path.
func (w *Workspace) IsInWorkspace(path string) bool {
	return len(w.ContainingFolders(path)) > 0
}

// RelativePath returns path relative to the first folder directory holding it.
func (w *Workspace) RelativePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for _, f := range w.ContainingFolders(absPath) {
		if isSubPath(f.Path, absPath) {
			return filepath.Rel(f.Path, absPath)
		}
	}
	return "", ErrFolderNotFound
}

// Subscribe registers fn for workspace changes. fn runs on the goroutine
// that made the change.
func (w *Workspace) Subscribe(fn func(ChangeEvent)) *notify.Subscription {
	return w.notifier.Subscribe(fn)
}

func (w *Workspace) indexOfPathLocked(path string) int {
	return slices.IndexFunc(w.folders, func(f Folder) bool { return f.Path == path })
}

func (w *Workspace) indexOfIDLocked(id uuid.UUID) int {
	return slices.IndexFunc(w.folders, func(f Folder) bool { return f.ID == id })
}

// isSubPath checks if child is parent or lies below it.
func isSubPath(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)
	if child == parent {
		return true
	}
	if !strings.HasSuffix(parent, string(filepath.Separator)) {
		parent += string(filepath.Separator)
	}
	return strings.HasPrefix(child, parent)
}
