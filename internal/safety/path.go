// Package safety validates filesystem paths built from untrusted
// input: entry names read out of a backup archive during staging
// extraction, and manifest IDs taken from the command line. Both get
// joined under a directory the engine owns, and neither may resolve
// outside it.
package safety

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CleanRelativePath normalizes a slash- or OS-separated relative path
// and rejects anything that could name a file outside its root:
// absolute paths, parent traversal, and paths that collapse to ".".
func CleanRelativePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}

	clean := filepath.Clean(filepath.FromSlash(p))
	switch {
	case clean == ".":
		return "", fmt.Errorf("path %q names no file", p)
	case filepath.IsAbs(clean):
		return "", fmt.Errorf("absolute path %q is not allowed", p)
	case clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
		return "", fmt.Errorf("path %q traverses outside its root", p)
	}
	return clean, nil
}

// SafeJoinUnder joins rel under root and verifies the result still
// resolves inside root. Every archive entry passes through here before
// extraction writes it, and every manifest ID before the registry
// touches a file named after it.
func SafeJoinUnder(root, rel string) (string, error) {
	cleanRel, err := CleanRelativePath(rel)
	if err != nil {
		return "", err
	}
	return EnsureUnderRoot(root, filepath.Join(root, cleanRel))
}

// EnsureUnderRoot verifies candidate resolves under root and returns
// the absolute normalized path. The check is lexical; symlinks inside
// root are not followed.
func EnsureUnderRoot(root, candidate string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	candAbs, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving candidate: %w", err)
	}

	rel, err := filepath.Rel(rootAbs, candAbs)
	if err != nil {
		return "", fmt.Errorf("comparing paths: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %q", candidate, root)
	}
	return candAbs, nil
}
