package vfs

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

var (
	errIsDir  = syscall.EISDIR
	errNotDir = syscall.ENOTDIR
)

// MemFS implements VFS using an in-memory file system.
// Modification times are taken from a settable clock so tests can drive the
// scanner's debounce logic deterministically.
//
// MemFS is safe for concurrent use.
type MemFS struct {
	mu    sync.RWMutex
	files map[string]*memFile
	dirs  map[string]bool
	now   func() time.Time
}

type memFile struct {
	content []byte
	modTime time.Time
	readErr error
}

// NewMemFS creates a new in-memory file system.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string]*memFile),
		dirs:  map[string]bool{"/": true},
		now:   time.Now,
	}
}

var (
	_ VFS    = (*MemFS)(nil)
	_ Writer = (*MemFS)(nil)
)

// SetClock replaces the clock used to stamp writes.
func (m *MemFS) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// ReadFile reads the entire file content.
func (m *MemFS) ReadFile(filePath string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = cleanPath(filePath)
	f, ok := m.files[filePath]
	if !ok {
		if m.dirs[filePath] {
			return nil, &fs.PathError{Op: "read", Path: filePath, Err: errIsDir}
		}
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: fs.ErrNotExist}
	}
	if f.readErr != nil {
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: f.readErr}
	}

	content := make([]byte, len(f.content))
	copy(content, f.content)
	return content, nil
}

// Stat returns file information.
func (m *MemFS) Stat(filePath string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statLocked(cleanPath(filePath))
}

func (m *MemFS) statLocked(filePath string) (FileInfo, error) {
	if f, ok := m.files[filePath]; ok {
		return NewFileInfo(filePath, path.Base(filePath), int64(len(f.content)), f.modTime, false), nil
	}
	if m.dirs[filePath] {
		return NewFileInfo(filePath, path.Base(filePath), 0, time.Time{}, true), nil
	}
	return FileInfo{}, &fs.PathError{Op: "stat", Path: filePath, Err: fs.ErrNotExist}
}

// ReadDir returns the direct children of a directory sorted by name.
func (m *MemFS) ReadDir(dirPath string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readDirLocked(cleanPath(dirPath))
}

func (m *MemFS) readDirLocked(dirPath string) ([]FileInfo, error) {
	if !m.dirs[dirPath] {
		if _, ok := m.files[dirPath]; ok {
			return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: errNotDir}
		}
		return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: fs.ErrNotExist}
	}

	prefix := dirPath
	if prefix != "/" {
		prefix += "/"
	}

	var entries []FileInfo
	for p := range m.files {
		if name, ok := directChild(p, prefix); ok {
			info, _ := m.statLocked(p)
			entries = append(entries, NewFileInfo(p, name, info.Size(), info.ModTime(), false))
		}
	}
	for d := range m.dirs {
		if name, ok := directChild(d, prefix); ok {
			entries = append(entries, NewFileInfo(d, name, 0, time.Time{}, true))
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	return entries, nil
}

func directChild(p, prefix string) (string, bool) {
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// Walk walks the file tree rooted at root in lexical order.
func (m *MemFS) Walk(root string, fn WalkFunc) error {
	root = cleanPath(root)
	info, err := m.Stat(root)
	if err != nil {
		return fn(root, FileInfo{}, err)
	}
	err = m.walk(root, info, fn)
	if err == SkipDir {
		return nil
	}
	return err
}

func (m *MemFS) walk(p string, info FileInfo, fn WalkFunc) error {
	if err := fn(p, info, nil); err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	entries, err := m.ReadDir(p)
	if err != nil {
		return fn(p, info, err)
	}
	for _, entry := range entries {
		if err := m.walk(entry.Path(), entry, fn); err != nil {
			if err == SkipDir {
				if entry.IsDir() {
					continue
				}
				return nil
			}
			return err
		}
	}
	return nil
}

// Abs returns the cleaned path; MemFS paths are always absolute.
func (m *MemFS) Abs(filePath string) (string, error) {
	return cleanPath(filePath), nil
}

// AddFile writes a file stamped with the current clock, creating parents.
func (m *MemFS) AddFile(filePath, content string) error {
	m.mu.RLock()
	now := m.now()
	m.mu.RUnlock()
	return m.WriteFileAt(filePath, content, now)
}

// WriteFileAt writes a file with an explicit modification time.
func (m *MemFS) WriteFileAt(filePath, content string, modTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = cleanPath(filePath)
	if m.dirs[filePath] {
		return &fs.PathError{Op: "write", Path: filePath, Err: errIsDir}
	}
	for dir := path.Dir(filePath); ; dir = path.Dir(dir) {
		if _, isFile := m.files[dir]; isFile {
			return &fs.PathError{Op: "write", Path: filePath, Err: errNotDir}
		}
		m.dirs[dir] = true
		if dir == "/" {
			break
		}
	}

	m.files[filePath] = &memFile{content: []byte(content), modTime: modTime.UTC()}
	return nil
}

// WriteFile writes a file stamped with the current clock.
func (m *MemFS) WriteFile(filePath string, data []byte) error {
	return m.AddFile(filePath, string(data))
}

// Mkdir creates a directory and its parents.
func (m *MemFS) Mkdir(dirPath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for dir := cleanPath(dirPath); ; dir = path.Dir(dir) {
		m.dirs[dir] = true
		if dir == "/" {
			return
		}
	}
}

// SetModTime changes the modification time of an existing file.
func (m *MemFS) SetModTime(filePath string, modTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[cleanPath(filePath)]
	if !ok {
		return &fs.PathError{Op: "chtimes", Path: filePath, Err: fs.ErrNotExist}
	}
	f.modTime = modTime.UTC()
	return nil
}

// SetReadError makes subsequent reads of filePath fail with err until it is
// cleared with a nil err. Stat keeps working, like a locked file.
func (m *MemFS) SetReadError(filePath string, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[cleanPath(filePath)]
	if !ok {
		return &fs.PathError{Op: "lock", Path: filePath, Err: fs.ErrNotExist}
	}
	f.readErr = err
	return nil
}

// Remove deletes a file or an empty directory.
func (m *MemFS) Remove(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = cleanPath(filePath)
	if _, ok := m.files[filePath]; ok {
		delete(m.files, filePath)
		return nil
	}
	if m.dirs[filePath] {
		if entries, _ := m.readDirLocked(filePath); len(entries) > 0 {
			return &fs.PathError{Op: "remove", Path: filePath, Err: syscall.ENOTEMPTY}
		}
		delete(m.dirs, filePath)
		return nil
	}
	return &fs.PathError{Op: "remove", Path: filePath, Err: fs.ErrNotExist}
}

// Rename moves a file, keeping its content and modification time.
func (m *MemFS) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldPath = cleanPath(oldPath)
	newPath = cleanPath(newPath)
	f, ok := m.files[oldPath]
	if !ok {
		return &fs.PathError{Op: "rename", Path: oldPath, Err: fs.ErrNotExist}
	}
	if !m.dirs[path.Dir(newPath)] {
		return &fs.PathError{Op: "rename", Path: newPath, Err: fs.ErrNotExist}
	}
	m.files[newPath] = f
	delete(m.files, oldPath)
	return nil
}

// Files returns all file paths, sorted.
func (m *MemFS) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]string, 0, len(m.files))
	for f := range m.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func cleanPath(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
