// Package provision creates the per-run backup directory.
//
// The directory is bind-mounted into containers, so its path is resolved
// to canonical form before use. On macOS the default temp directory lives
// under /var, which is a symlink to /private/var; Docker Desktop's default
// file-sharing list includes /private but not /var.
package provision

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPrefix is the name prefix for backup directories.
const DefaultPrefix = "roundtrip-backup-"

// BackupDir creates a new, uniquely named directory under parent and
// returns its absolute, symlink-free path. An empty parent means the
// system temp directory; an empty prefix means DefaultPrefix.
//
// The directory is never removed by this package. It is retained after
// the run for inspection.
func BackupDir(parent, prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	dir, err := os.MkdirTemp(parent, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	resolved, err := Canonical(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve backup directory %s: %w", dir, err)
	}
	return resolved, nil
}

// Canonical returns the absolute path of an existing file with every
// symlink component resolved.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
