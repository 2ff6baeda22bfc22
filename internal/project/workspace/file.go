package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/tasktrack/internal/project/vfs"
)

// File is the on-disk workspace description. It reads the folder list of a
// VS Code style .code-workspace file and accepts two extra folder keys,
// "files" and "exclude".
type File struct {
	Folders []FolderEntry `json:"folders"`
}

// FolderEntry is one folder in a workspace file.
type FolderEntry struct {
	// Path is relative to the workspace file or absolute.
	Path string `json:"path"`
	// Name is an optional caption.
	Name string `json:"name,omitempty"`
	// Files are linked files, relative to the workspace file or absolute.
	Files []string `json:"files,omitempty"`
	// Exclude holds gitignore-style patterns.
	Exclude []string `json:"exclude,omitempty"`
}

// Open builds a Workspace from the workspace file at path. The workspace is
// named after the file without its extension.
func Open(ctx context.Context, fsys vfs.VFS, path string) (*Workspace, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workspace file: %w", err)
	}

	var wf File
	if err := json.Unmarshal(vfs.StripBOM(data), &wf); err != nil {
		return nil, fmt.Errorf("parsing workspace file %s: %w", path, err)
	}
	if len(wf.Folders) == 0 {
		return nil, ErrNoFolders
	}

	baseDir := filepath.Dir(path)
	resolve := func(p string) string {
		p = filepath.FromSlash(p)
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		return filepath.Clean(p)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ws := New(name)
	for _, entry := range wf.Folders {
		if entry.Path == "" {
			return nil, ErrInvalidPath
		}
		f := Folder{
			Path:    resolve(entry.Path),
			Name:    entry.Name,
			Exclude: entry.Exclude,
		}
		for _, file := range entry.Files {
			f.Files = append(f.Files, resolve(file))
		}
		if _, err := ws.AddFolderWith(ctx, f); err != nil {
			return nil, fmt.Errorf("folder %s: %w", entry.Path, err)
		}
	}
	return ws, nil
}
