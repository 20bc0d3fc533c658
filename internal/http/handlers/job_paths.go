package handlers

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathOutsideRoot = errors.New("path is outside the allowed directory")
)

// JobRoots are the directories queued jobs may read from and write to.
type JobRoots struct {
	SourceDir string
	DestDir   string
}

func (r JobRoots) configured() bool {
	return r.SourceDir != "" && r.DestDir != ""
}

func (r JobRoots) absolute() JobRoots {
	return JobRoots{SourceDir: absDir(r.SourceDir), DestDir: absDir(r.DestDir)}
}

func absDir(dir string) string {
	if dir == "" {
		return ""
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// resolveUnder joins a relative path onto root and returns the cleaned
// absolute path. The result must name an entry strictly inside root.
func resolveUnder(root, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}
	return path, nil
}
