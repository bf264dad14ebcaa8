package toolserver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that resolve outside the root.
var ErrOutsideRoot = errors.New("path is outside the repository root")

// Root confines file access to one directory tree.
type Root struct {
	dir string
}

// NewRoot returns a Root for dir, which must exist and be a directory.
func NewRoot(dir string) (Root, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Root{}, fmt.Errorf("resolving root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Root{}, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return Root{}, err
	}
	if !info.IsDir() {
		return Root{}, fmt.Errorf("root %s is not a directory", dir)
	}
	return Root{dir: resolved}, nil
}

// Dir returns the absolute root directory.
func (r Root) Dir() string { return r.dir }

// Resolve maps a root-relative path to an absolute one. It returns the
// absolute path and the cleaned slash-separated relative path.
func (r Root) Resolve(p string) (abs, rel string, err error) {
	if p == "" {
		p = "."
	}
	if filepath.IsAbs(p) {
		inside, err := filepath.Rel(r.dir, filepath.Clean(p))
		if err != nil {
			return "", "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
		}
		p = inside
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	abs = filepath.Join(r.dir, clean)

	// A symlink inside the tree may still point out of it.
	if target, err := filepath.EvalSymlinks(abs); err == nil && !r.contains(target) {
		return "", "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	return abs, filepath.ToSlash(clean), nil
}

func (r Root) contains(path string) bool {
	if path == r.dir {
		return true
	}
	return strings.HasPrefix(path, r.dir+string(filepath.Separator))
}

// skipDir reports directories no tool descends into.
func skipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", ".venv", "__pycache__", "target", "dist":
		return true
	}
	return false
}
