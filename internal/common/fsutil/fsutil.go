// Package fsutil holds small filesystem helpers shared across the daemon,
// including the path sandbox every caller-supplied path must pass through.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned by BuildPath when the resolved path would escape
// the permitted root. Callers map it to a not-found class response so the
// real filesystem layout never leaks.
var ErrOutsideRoot = errors.New("path escapes permitted root")

// BuildPath resolves a caller-supplied path against the permitted root and
// rejects any result that is not a descendant of the root. Relative paths are
// joined to the root; absolute paths are accepted only when they already lie
// inside it. The check is purely lexical, so it also applies to paths that do
// not exist yet (e.g. save destinations).
func BuildPath(root, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrOutsideRoot
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(rootAbs, full)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(rootAbs, full)
	if err != nil {
		return "", ErrOutsideRoot
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/llm
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists checks if the given path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
