// Package security validates file names and paths derived from run data
// before the report writers touch the filesystem.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// canonical resolves symlinks in p, or in its nearest existing parent when
// p does not exist yet.
func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	for cur, dir := p, filepath.Dir(p); dir != cur; cur, dir = dir, filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, p)
			return filepath.Join(resolved, rest)
		}
	}
	return p
}

// ValidatePathWithinDirectory rejects filePath if, after cleaning and
// symlink resolution, it escapes safeDir. filePath need not exist.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafe, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	safe, err := filepath.EvalSymlinks(absSafe)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(safe, canonical(absPath))
	if err != nil {
		return fmt.Errorf("path is outside output directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, safeDir)
	}
	return nil
}

// maxFilenameLen bounds SanitizeFilename output.
const maxFilenameLen = 128

// SanitizeFilename maps an arbitrary identifier (a station or satellite
// code) to a file name component. Runs of characters other than ASCII
// letters, digits, '.', '_' and '-' become one underscore; leading and
// trailing dots and underscores are trimmed. An empty result is "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
