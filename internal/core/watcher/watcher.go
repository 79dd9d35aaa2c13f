// Package watcher reports batches of changed source files.
package watcher

import (
	"io/fs"
	"log/slog"
	"microscope/internal/shared/observability"
	"microscope/internal/shared/util"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// Filter decides whether a changed file is a candidate for analysis.
type Filter interface {
	Accepts(path string) bool
}

const fileOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// batch collects paths until the debounce window closes without new
// arrivals, then hands them to flush in one call.
type batch struct {
	mu      sync.Mutex
	window  time.Duration
	paths   map[string]struct{}
	timer   *time.Timer
	stopped bool
	flush   func([]string)
	deliver sync.Mutex
}

func (b *batch) add(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.paths[path] = struct{}{}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.window, b.fire)
}

func (b *batch) fire() {
	b.mu.Lock()
	paths := util.SortedStringKeys(b.paths)
	clear(b.paths)
	b.mu.Unlock()
	if len(paths) == 0 {
		return
	}
	// Batches never overlap, a slow callback delays the next one.
	b.deliver.Lock()
	defer b.deliver.Unlock()
	b.flush(paths)
}

func (b *batch) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
}

type Watcher struct {
	fs       *fsnotify.Watcher
	skipDirs []glob.Glob
	filter   Filter
	batch    *batch
	once     sync.Once
}

// New builds a watcher that calls onChange with the sorted, deduplicated
// paths that changed within one debounce window. Directories whose base name
// matches excludeDirs are never watched.
func New(debounce time.Duration, excludeDirs []string, filter Filter, onChange func([]string)) (*Watcher, error) {
	if onChange == nil || filter == nil {
		return nil, os.ErrInvalid
	}
	skip := make([]glob.Glob, len(excludeDirs))
	for i, pattern := range excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		skip[i] = g
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fs:       fsw,
		skipDirs: skip,
		filter:   filter,
		batch:    &batch{window: debounce, paths: map[string]struct{}{}, flush: onChange},
	}, nil
}

// SetDebounce changes the window for batches started from now on.
func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.batch.mu.Lock()
	w.batch.window = debounce
	w.batch.mu.Unlock()
}

// Watch registers every directory under paths and starts delivering events.
// A file argument watches its directory.
func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			err = w.addTree(path)
		} else {
			err = w.fs.Add(filepath.Dir(path))
		}
		if err != nil {
			return err
		}
	}
	go w.loop()
	return nil
}

func (w *Watcher) skipped(dir string) bool {
	name := filepath.Base(dir)
	for _, g := range w.skipDirs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case !d.IsDir():
			return nil
		case path != root && w.skipped(path):
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.adoptDir(event.Name)
			return
		}
	}
	if event.Op&fileOps != 0 && w.filter.Accepts(event.Name) {
		w.batch.add(event.Name)
	}
}

// adoptDir starts watching a directory created after Watch. Files written
// before the watch was in place are queued as changed.
func (w *Watcher) adoptDir(dir string) {
	if w.skipped(dir) {
		return
	}
	if err := w.addTree(dir); err != nil {
		slog.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.filter.Accepts(path) {
			w.batch.add(path)
		}
		return nil
	})
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.batch.stop()
		err = w.fs.Close()
	})
	return err
}
