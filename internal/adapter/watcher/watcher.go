// Package watcher re-ingests corpus files when they change on disk.
package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"academybot/internal/adapter/fs"
)

// ReingestFunc is called with the batch of changed corpus files once the
// directory has been quiet for the debounce window.
type ReingestFunc func(ctx context.Context, paths []string) error

// Watcher monitors a corpus directory and triggers re-ingest on changes.
// Events are debounced so a bulk copy produces one ingest run.
type Watcher struct {
	walker   *fs.Walker
	debounce time.Duration
	log      *zap.Logger
}

func New(walker *fs.Walker, debounce time.Duration, log *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{walker: walker, debounce: debounce, log: log}
}

// Run watches dir until ctx is cancelled, calling reingest with each
// debounced batch of changed files. Removed files are not reported.
func (w *Watcher) Run(ctx context.Context, dir string, reingest ReingestFunc) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dir, err = filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := fsw.Add(dir); err != nil {
		return err
	}

	w.log.Info("watching corpus directory", zap.String("dir", dir))

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			relPath, err := filepath.Rel(dir, event.Name)
			if err != nil || !w.walker.Matches(relPath) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})

			w.log.Info("corpus changed, re-ingesting", zap.Int("files", len(paths)))
			if err := reingest(ctx, paths); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.log.Warn("re-ingest failed", zap.Error(err))
			}
		}
	}
}
