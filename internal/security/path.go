package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateDatabasePath rejects paths that could escape the configured data
// directory through traversal or smuggled NUL bytes. Absolute paths are
// allowed; the operator chose them deliberately.
func ValidateDatabasePath(path string) error {
	if path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("database path contains a null byte")
	}

	cleaned := filepath.Clean(path)
	for _, part := range strings.Split(filepath.ToSlash(cleaned), "/") {
		if part == ".." {
			return fmt.Errorf("database path contains directory traversal: %s", path)
		}
	}
	return nil
}

// ValidatePathWithinBase ensures path resolves inside baseDir after cleaning.
// Used for anything derived from external input that touches the filesystem.
func ValidatePathWithinBase(path, baseDir string) error {
	if err := ValidateDatabasePath(path); err != nil {
		return err
	}
	if baseDir == "" {
		return nil
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(absBase, candidate)
	}
	absPath, err := filepath.Abs(candidate)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}
	return nil
}
