package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 400 * time.Millisecond

// Reloader watches a config file and invokes a callback with the freshly
// parsed config whenever it changes. Only the ranking weights are expected to
// change at runtime; callers decide what to apply.
type Reloader struct {
	path     string
	onChange func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	started  bool
	stopOnce sync.Once
	done     chan struct{}
	logger   *zap.Logger
}

// NewReloader creates a reloader for the config file at path.
// logger may be nil to disable logging.
func NewReloader(path string, onChange func(*Config), logger *zap.Logger) *Reloader {
	return &Reloader{
		path:     path,
		onChange: onChange,
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// The parent directory is watched rather than the file itself so that
// editors that replace the file (rename-over) are still observed.
func (r *Reloader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		r.mu.Unlock()
		return err
	}
	r.watcher = watcher
	r.started = true
	r.mu.Unlock()
	go r.run(ctx)
	return nil
}

func (r *Reloader) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.Stop()
			return
		case <-r.done:
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(r.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			r.scheduleReload()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && r.logger != nil {
				r.logger.Debug("config watcher error", zap.Error(err))
			}
		}
	}
}

// scheduleReload debounces bursts of write events into a single reload.
func (r *Reloader) scheduleReload() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(reloadDebounce, r.reload)
}

func (r *Reloader) reload() {
	cfg, err := Load(r.path)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("config reload failed", zap.String("path", r.path), zap.Error(err))
		}
		return
	}
	if r.logger != nil {
		r.logger.Info("config reloaded", zap.String("path", r.path))
	}
	r.onChange(cfg)
}

// Stop stops the reloader. Safe to call more than once.
func (r *Reloader) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.mu.Lock()
		if r.timer != nil {
			r.timer.Stop()
		}
		if r.watcher != nil {
			_ = r.watcher.Close()
		}
		r.mu.Unlock()
	})
}
