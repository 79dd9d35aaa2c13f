package config

import (
	"context"
	"log/slog"
	"microscope/internal/engine/namespace"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reload is what a Watcher hands to its callback: the freshly loaded
// configuration and the mappings it yields, composer.json included.
type Reload struct {
	Config   *Config
	Mappings []namespace.Mapping
	// Trigger is the file whose change caused the reload.
	Trigger string
}

// Watcher reloads the configuration when the config file or the composer.json
// it takes mappings from changes. A reload that fails to parse or validate
// is logged and the previous configuration stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	callback func(Reload)

	mu      sync.Mutex
	targets map[string]bool
	timer   *time.Timer
	trigger string

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewWatcher(path string, callback func(Reload)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: 100 * time.Millisecond,
		callback: callback,
		stop:     make(chan struct{}),
	}
}

// composerPath is the composer file a configuration reads, or "" when
// composer discovery is off.
func composerPath(cfg *Config, base string) string {
	if cfg.Composer.Disabled {
		return ""
	}
	file := cfg.Composer.File
	if file == "" {
		file = "composer.json"
	}
	return ResolveRelative(base, file)
}

func (w *Watcher) Start(ctx context.Context) error {
	current, err := Load(w.path)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Editors often replace files instead of writing them, so directories
	// are watched and events filtered by name.
	w.targets = map[string]bool{w.path: true}
	dirs := map[string]bool{filepath.Dir(w.path): true}
	if composer := composerPath(current, filepath.Dir(w.path)); composer != "" {
		w.targets[composer] = true
		dirs[filepath.Dir(composer)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return err
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fsw.Close()
		slog.Debug("config watcher started", "path", w.path, "files", len(w.targets))

		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				name := filepath.Clean(event.Name)
				if !w.targets[name] || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				w.schedule(name)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (w *Watcher) schedule(trigger string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.trigger = trigger
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) reload() {
	w.mu.Lock()
	trigger := w.trigger
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("config reload failed, keeping previous configuration", "path", w.path, "error", err)
		return
	}
	ApplyEnvOverrides(cfg)
	mappings, err := cfg.Mappings()
	if err != nil {
		slog.Warn("namespace mappings not reloaded", "trigger", trigger, "error", err)
		return
	}
	slog.Info("configuration reloaded", "trigger", trigger, "mappings", len(mappings))
	if w.callback != nil {
		w.callback(Reload{Config: cfg, Mappings: mappings, Trigger: trigger})
	}
}
