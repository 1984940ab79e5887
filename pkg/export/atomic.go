package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

// ErrWrite wraps every failure to produce output files. No partial file is
// left behind when it is returned.
var ErrWrite = errors.New("write failed")

// fileSet stages several output files next to their destinations and moves
// them into place together. Until commit, nothing is visible at the target paths.
type fileSet struct {
	pending []*renameio.PendingFile
	paths   []string
}

// create stages a new file for path, creating the parent directory if needed.
func (s *fileSet) create(path string) (*renameio.PendingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: creating directory for %s: %w", ErrWrite, path, err)
	}
	f, err := renameio.NewPendingFile(path, renameio.WithPermissions(0644))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	s.pending = append(s.pending, f)
	s.paths = append(s.paths, path)
	return f, nil
}

// commit replaces each destination in staging order. Callers stage the
// primary file last so it only appears once its companions are in place.
//
// Files that already exist are hard-linked to a hidden backup first. If a
// later replace fails, the files already committed get their previous
// contents back; files that did not exist before, or that could not be
// linked, are removed.
func (s *fileSet) commit() error {
	backups := make([]string, len(s.paths))
	defer func() {
		for _, b := range backups {
			if b != "" {
				_ = os.Remove(b)
			}
		}
	}()
	for i, path := range s.paths {
		backups[i] = backup(path)
	}

	for i, f := range s.pending {
		if err := f.CloseAtomicallyReplace(); err != nil {
			s.discard(i)
			restore(s.paths[:i], backups)
			return fmt.Errorf("%w: %s: %w", ErrWrite, s.paths[i], err)
		}
	}
	s.pending = nil
	return nil
}

// backup links an existing file at path to a hidden sibling and returns the
// link's name, or "" when there is nothing to keep.
func backup(path string) string {
	if info, err := os.Lstat(path); err != nil || !info.Mode().IsRegular() {
		return ""
	}
	name := filepath.Join(filepath.Dir(path),
		fmt.Sprintf(".%s.%s.bak", filepath.Base(path), uuid.NewString()[:8]))
	if err := os.Link(path, name); err != nil {
		return ""
	}
	return name
}

// restore puts back the backup of each committed path, or removes the path
// when there is none. Restored backups are cleared from backups.
func restore(committed, backups []string) {
	for i, path := range committed {
		if backups[i] != "" && os.Rename(backups[i], path) == nil {
			backups[i] = ""
			continue
		}
		_ = os.Remove(path)
	}
}

// cleanup removes every staged file that has not been committed.
func (s *fileSet) cleanup() {
	s.discard(0)
}

func (s *fileSet) discard(from int) {
	for _, f := range s.pending[from:] {
		_ = f.Cleanup()
	}
	s.pending = nil
}
