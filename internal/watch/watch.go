// Package watch re-runs a build whenever one of its input files changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is used when Watcher.Debounce is not positive.
const DefaultDebounce = 300 * time.Millisecond

// Watcher calls Rebuild once at start and again after any file returned by
// Files is written, created, renamed or removed. Bursts of events within
// Debounce collapse into one rebuild.
//
// Parent directories are watched rather than the files themselves, so editors
// that save by renaming a temporary file are still noticed. Files is consulted
// again after every rebuild, since the set of inputs may have changed.
type Watcher struct {
	Files    func() []string
	Rebuild  func(ctx context.Context) error
	Debounce time.Duration
	Log      *zap.Logger
}

// Run blocks until ctx is cancelled. Rebuild errors are logged and do not
// stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	ws := &watchSet{fsw: fsw, dirs: make(map[string]bool), log: log}
	ws.refresh(w.Files())
	w.rebuild(ctx, log)

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !ws.files[filepath.Clean(e.Name)] {
				continue
			}
			if e.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			log.Debug("input changed", zap.String("file", e.Name), zap.Stringer("op", e.Op))
			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			w.rebuild(ctx, log)
			ws.refresh(w.Files())
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context, log *zap.Logger) {
	start := time.Now()
	if err := w.Rebuild(ctx); err != nil {
		log.Error("rebuild failed", zap.Error(err))
		return
	}
	log.Debug("rebuild finished", zap.Duration("took", time.Since(start)))
}

// watchSet tracks the watched files and the directories holding them.
type watchSet struct {
	fsw   *fsnotify.Watcher
	files map[string]bool
	dirs  map[string]bool
	log   *zap.Logger
}

func (s *watchSet) refresh(paths []string) {
	s.files = make(map[string]bool, len(paths))
	want := make(map[string]bool)
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		p = filepath.Clean(p)
		s.files[p] = true
		want[filepath.Dir(p)] = true
	}

	for dir := range s.dirs {
		if !want[dir] {
			_ = s.fsw.Remove(dir)
			delete(s.dirs, dir)
		}
	}
	for dir := range want {
		if s.dirs[dir] {
			continue
		}
		if err := s.fsw.Add(dir); err != nil {
			s.log.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		s.dirs[dir] = true
	}
}
