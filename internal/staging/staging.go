// Package staging prepares the source copy that the test image is built from.
//
// Every run starts from an empty staging directory: whatever an earlier
// run left behind is removed first, on a best-effort basis, and the source
// tree and dependency manifests are copied in fresh.
package staging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Layout describes what to copy and where.
type Layout struct {
	// SourceRoot is the root of the tool's repository.
	SourceRoot string

	// Tree is the source directory, relative to SourceRoot, copied to
	// StagingDir/Tree.
	Tree string

	// Manifests are files relative to SourceRoot (e.g. Cargo.toml and
	// Cargo.lock) copied flat into StagingDir.
	Manifests []string

	// StagingDir is the destination inside the build context. It is
	// deleted and recreated by Stage.
	StagingDir string
}

// Validate checks that the layout names a source and a destination, and
// that staging cannot touch the source (see CheckOverlap).
func (l Layout) Validate() error {
	if l.SourceRoot == "" {
		return errors.New("staging: source root must not be empty")
	}
	if l.StagingDir == "" {
		return errors.New("staging: staging directory must not be empty")
	}
	if l.Tree == "" && len(l.Manifests) == 0 {
		return errors.New("staging: nothing to copy (no source tree and no manifests)")
	}
	return l.CheckOverlap()
}

// CheckOverlap fails if StagingDir is the source tree, lies inside it or
// contains it, contains SourceRoot, or contains a manifest. Stage deletes
// StagingDir first, so any of these would destroy source files, and a
// staging dir inside the tree would also be copied into itself.
//
// The check is lexical on absolute paths; symlinked aliases are not
// detected.
func (l Layout) CheckOverlap() error {
	stagingDir := absPath(l.StagingDir)

	if root := absPath(l.SourceRoot); root == stagingDir || Contains(stagingDir, root) {
		return fmt.Errorf("staging: staging directory %s contains the source root %s", l.StagingDir, l.SourceRoot)
	}

	if l.Tree != "" {
		tree := absPath(filepath.Join(l.SourceRoot, l.Tree))
		if Overlaps(stagingDir, tree) {
			return fmt.Errorf("staging: staging directory %s overlaps the source tree %s", l.StagingDir, tree)
		}
	}

	for _, m := range l.Manifests {
		manifest := absPath(filepath.Join(l.SourceRoot, m))
		if Overlaps(stagingDir, manifest) {
			return fmt.Errorf("staging: staging directory %s overlaps the manifest %s", l.StagingDir, manifest)
		}
	}

	return nil
}

// Overlaps reports whether a and b are the same path or one contains the
// other. Both must be absolute or both relative to the same directory.
func Overlaps(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	return a == b || Contains(a, b) || Contains(b, a)
}

// Contains reports whether child is strictly inside parent (lexically).
func Contains(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// absPath makes p absolute, falling back to the cleaned input.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Stage removes l.StagingDir and copies the source tree and manifests into
// a fresh one. Removal errors are ignored; any copy error is returned.
func Stage(l Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}

	// Best effort: a failure here shows up as a copy error below if it
	// actually matters.
	_ = os.RemoveAll(l.StagingDir)

	if err := os.MkdirAll(l.StagingDir, 0o755); err != nil {
		return fmt.Errorf("staging: failed to create %s: %w", l.StagingDir, err)
	}

	if l.Tree != "" {
		src := filepath.Join(l.SourceRoot, l.Tree)
		dst := filepath.Join(l.StagingDir, l.Tree)
		if err := CopyTree(src, dst); err != nil {
			return fmt.Errorf("staging: failed to copy source tree: %w", err)
		}
	}

	for _, m := range l.Manifests {
		src := filepath.Join(l.SourceRoot, m)
		dst := filepath.Join(l.StagingDir, filepath.Base(m))
		if err := CopyFile(src, dst); err != nil {
			return fmt.Errorf("staging: failed to copy manifest %s: %w", m, err)
		}
	}

	return nil
}

// CopyTree recursively copies the directory src to dst. Directories and
// regular files keep their permission bits; symlinks are recreated with
// the same target rather than followed. Other file types are rejected.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0o700)

		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)

		case d.Type().IsRegular():
			return CopyFile(path, target)

		default:
			return fmt.Errorf("%s: unsupported file type %s", path, d.Type())
		}
	})
}

// CopyFile copies the regular file src to dst, preserving its permission
// bits. dst is truncated if it exists.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
