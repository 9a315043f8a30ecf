package rapidslogger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// LevelWatcher re-reads a config file whenever it changes and hands the
// result to a callback. The file's directory is watched so that editors
// replacing the file by rename are noticed too.
type LevelWatcher struct {
	path     string
	key      string
	onChange func(context.Context, *Config)
	logger   StructuredLogger
	events   *eventBus

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewLevelWatcher creates a stopped watcher for path.
func NewLevelWatcher(path string, onChange func(context.Context, *Config), logger StructuredLogger) (*LevelWatcher, error) {
	if _, err := FileFeeder(path); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &LevelWatcher{path: abs, onChange: onChange, logger: logger}, nil
}

// WatchKey restricts reloads to the top-level key of the file. It must be
// called before Start.
func (w *LevelWatcher) WatchKey(key string) error {
	if _, err := SectionFeeder(w.path, key); err != nil {
		return err
	}
	w.key = key
	return nil
}

// Start begins watching. Starting twice is a no-op.
func (w *LevelWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("Watching config file", "file", w.path)
	runCtx, cancel := context.WithCancel(ctx)
	w.watcher = watcher
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(runCtx, watcher, w.done)
	return nil
}

// Stop ends watching and waits for the watch loop to exit.
func (w *LevelWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	watcher, cancel, done := w.watcher, w.cancel, w.done
	w.watcher, w.cancel, w.done = nil, nil, nil
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}
	cancel()
	err := watcher.Close()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("config watcher stop: %w", ctx.Err()))
	}
	return err
}

func (w *LevelWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			if err := w.Reload(ctx); err != nil {
				w.logger.Warn("Config reload failed", "file", w.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", "file", w.path, "error", err)
		}
	}
}

// Reload reads the file once and passes the validated config to the
// callback. An invalid file leaves the current settings untouched.
func (w *LevelWatcher) Reload(ctx context.Context) error {
	feeder, err := SectionFeeder(w.path, w.key)
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(feeder)
	if err != nil {
		return err
	}

	w.logger.Info("Config file changed", "file", w.path, "defaultLevel", cfg.DefaultLevel)
	w.events.emit(ctx, EventTypeConfigChanged, ConfigChangedData{File: w.path, DefaultLevel: cfg.DefaultLevel})
	if w.onChange != nil {
		w.onChange(ctx, cfg)
	}
	return nil
}
