package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dayflow/dayflow/pkg/telemetry"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the configuration file on change and notifies a callback
// with the freshly validated result. Invalid intermediate states are logged
// and skipped; the last good configuration stays in effect.
type Watcher struct {
	path    string
	log     *telemetry.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(path string, log *telemetry.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config watcher needs a file path")
	}
	if log == nil {
		log = telemetry.NopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save
	// and a file-level watch goes stale after the first rename.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:    path,
		log:     log.NewComponentLogger("config-watcher"),
		watcher: fw,
	}, nil
}

// Watch blocks until ctx is cancelled, invoking onReload for every valid
// configuration change.
func (w *Watcher) Watch(ctx context.Context, onReload func(Config)) {
	defer func() { _ = w.watcher.Close() }()

	var reloadTimer *time.Timer
	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDebounce, func() {
				w.reload(onReload)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) reload(onReload func(Config)) {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.WithError(err).Warn("ignoring invalid config change")
		return
	}

	w.log.WithField("level", cfg.Logging.Level).Info("configuration reloaded")
	onReload(cfg)
}
