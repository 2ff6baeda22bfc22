package watcher

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/dshills/tasktrack/internal/project/vfs"
)

// DefaultIgnorePatterns are directories and files that never hold source
// worth scanning.
var DefaultIgnorePatterns = []string{
	".git/",
	".svn/",
	".hg/",
	"node_modules/",
	".venv/",
	"venv/",
	"__pycache__/",
	"bin/",
	"obj/",
	".idea/",
	".vs/",
	".vscode/",
	"*.swp",
	"*~",
	".DS_Store",
	"Thumbs.db",
}

// Ignore is an immutable set of gitignore-style rules.
//
// Supported syntax: "#" comments, "!" negation, trailing "/" for
// directories only, leading "/" or an inner "/" to anchor at the root, and
// "**" spanning any number of path segments.
type Ignore struct {
	rules []ignoreRule
}

type ignoreRule struct {
	text     string
	segs     []string
	negate   bool
	dirOnly  bool
	anchored bool
}

// NewIgnore compiles patterns. Blank lines and comments are skipped.
func NewIgnore(patterns ...string) *Ignore {
	return (&Ignore{}).With(patterns...)
}

// DefaultIgnore returns an Ignore holding DefaultIgnorePatterns.
func DefaultIgnore() *Ignore {
	return NewIgnore(DefaultIgnorePatterns...)
}

// With returns a new Ignore with patterns appended. Later rules override
// earlier ones.
func (ig *Ignore) With(patterns ...string) *Ignore {
	out := &Ignore{rules: make([]ignoreRule, 0, len(ig.rules)+len(patterns))}
	out.rules = append(out.rules, ig.rules...)
	for _, p := range patterns {
		if r, ok := parseIgnoreRule(p); ok {
			out.rules = append(out.rules, r)
		}
	}
	return out
}

// Patterns returns the source text of every rule.
func (ig *Ignore) Patterns() []string {
	out := make([]string, len(ig.rules))
	for i, r := range ig.rules {
		out[i] = r.text
	}
	return out
}

// Len returns the number of rules.
func (ig *Ignore) Len() int {
	return len(ig.rules)
}

func parseIgnoreRule(line string) (ignoreRule, bool) {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}

	r := ignoreRule{text: line}
	p := line
	if strings.HasPrefix(p, "!") {
		r.negate = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimRight(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		r.anchored = true
		p = strings.TrimLeft(p, "/")
	} else if strings.Contains(p, "/") {
		r.anchored = true
	}
	if p == "" {
		return ignoreRule{}, false
	}
	r.segs = strings.Split(p, "/")
	return r, true
}

// Match reports whether rel, a slash or OS separated path relative to the
// ignore root, is ignored. A path inside an ignored directory is ignored.
func (ig *Ignore) Match(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." || len(ig.rules) == 0 {
		return false
	}
	parts := strings.Split(rel, "/")

	for k := 1; k <= len(parts); k++ {
		candDir := k < len(parts) || isDir
		ignored := false
		for _, r := range ig.rules {
			if r.dirOnly && !candDir {
				continue
			}
			if r.match(parts[:k]) {
				ignored = !r.negate
			}
		}
		if ignored {
			return true
		}
	}
	return false
}

func (r ignoreRule) match(parts []string) bool {
	if r.anchored {
		return matchSegments(r.segs, parts)
	}
	for i := range parts {
		if matchSegments(r.segs, parts[i:]) {
			return true
		}
	}
	return false
}

func matchSegments(pat, parts []string) bool {
	if len(pat) == 0 {
		return len(parts) == 0
	}
	if pat[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pat[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pat[0], parts[0])
	return ok && err == nil && matchSegments(pat[1:], parts[1:])
}

// ReadIgnoreFile reads patterns from a .gitignore-style file.
func ReadIgnoreFile(fsys vfs.VFS, filePath string) ([]string, error) {
	data, err := fsys.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return vfs.SplitLines(vfs.StripBOM(data)), nil
}
