// Package pathutil converts between absolute and project-relative paths.
//
// The pipeline works with absolute paths internally (construct.File,
// reference.File) to avoid ambiguity, but every path the rewriter emits into a
// "Used in:" block is project-relative and forward-slashed, per the emitted
// usage block grammar.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to one relative to rootDir. It falls
// back to the original (cleaned) path if conversion fails, the path already
// lies outside rootDir, or the path was already relative.
//
// Examples:
//   - ToRelative("/p/src/a.py", "/p") → "src/a.py"
//   - ToRelative("/other/b.py", "/p") → "/other/b.py" (outside root)
//   - ToRelative("src/a.py", "/p") → "src/a.py" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}

	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}

	return relPath
}

// ToPosixRelative is ToRelative followed by forward-slash normalization, the
// exact form the emitted "Used in:" block grammar requires
// (<posix-relative-path>).
func ToPosixRelative(absPath, rootDir string) string {
	return filepath.ToSlash(ToRelative(absPath, rootDir))
}

// NormalizeSlashes maps a path (relative or absolute, already computed by the
// caller) to its forward-slash form, used when deduplicating paths that may
// have been supplied in either OS-native or posix form (§4.8.3's "normalized
// forward-slash form" equivalence).
func NormalizeSlashes(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
