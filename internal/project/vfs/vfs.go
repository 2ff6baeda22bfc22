// Package vfs provides the file system abstraction used for every read the
// scanner performs.
//
// Production code runs on OSFS; tests run on MemFS, which lets them control
// modification times and inject read failures such as a locked file.
package vfs

import (
	"io/fs"
	"time"
)

// SkipDir is returned from a WalkFunc to skip the directory being visited.
var SkipDir = fs.SkipDir

// VFS is the read-side file system view needed by the task scanner.
type VFS interface {
	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// ReadDir returns the entries of a directory sorted by name.
	ReadDir(path string) ([]FileInfo, error)

	// Walk walks the file tree rooted at root in lexical order.
	Walk(root string, fn WalkFunc) error

	// Abs returns the absolute, cleaned form of path.
	Abs(path string) (string, error)
}

// FileInfo describes a file or directory.
type FileInfo struct {
	path    string
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

// NewFileInfo creates a FileInfo from the given parameters.
func NewFileInfo(path, name string, size int64, modTime time.Time, isDir bool) FileInfo {
	return FileInfo{
		path:    path,
		name:    name,
		size:    size,
		modTime: modTime,
		isDir:   isDir,
	}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Name returns the base name.
func (fi FileInfo) Name() string { return fi.name }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// ModTime returns the modification time in UTC.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.isDir }

// WalkFunc is called by Walk for every visited path. Returning SkipDir for a
// directory skips its contents.
type WalkFunc func(path string, info FileInfo, err error) error

// Writer is implemented by file systems that accept writes.
type Writer interface {
	// WriteFile replaces the content of path, creating it if needed.
	WriteFile(path string, data []byte) error

	// Rename moves a file.
	Rename(oldPath, newPath string) error
}
