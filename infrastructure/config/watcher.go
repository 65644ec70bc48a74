package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads the configuration file and fans the new Config out to
// registered callbacks. Only the development environment watches the file;
// elsewhere the watcher is a passive holder of the initial config.
type Watcher struct {
	mu        sync.RWMutex
	config    Config
	callbacks []func(Config)
	logger    *zap.Logger
	fs        *fsnotify.Watcher
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewWatcher creates the watcher and, in development with a config file
// present, starts the fsnotify loop.
func NewWatcher(initial Config, logger *zap.Logger) (*Watcher, error) {
	w := &Watcher{
		config: initial,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	path := ConfigFilePath()
	if !initial.IsDevelopment() || path == "" {
		logger.Info("configuration hot reload disabled",
			zap.String("environment", string(initial.Environment)))
		return w, nil
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fs.Add(path); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	w.fs = fs
	go w.loop()

	logger.Info("configuration hot reload enabled", zap.String("file", path))
	return w, nil
}

// Config returns the current configuration.
func (w *Watcher) Config() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// OnChange registers a callback invoked with each successfully reloaded
// configuration.
func (w *Watcher) OnChange(callback func(Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, callback)
	w.mu.Unlock()
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.fs != nil {
			w.fs.Close()
		}
	})
}

func (w *Watcher) loop() {
	// Editors emit bursts of write events; debounce them into one reload.
	var debounce *time.Timer
	const debounceDelay = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Info("configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()))
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) reload() {
	newConfig, err := Load()
	if err != nil {
		w.logger.Error("invalid configuration after reload, keeping previous", zap.Error(err))
		return
	}

	w.mu.Lock()
	old := w.config
	w.config = newConfig
	callbacks := make([]func(Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logEditorChanges(old, newConfig)

	for _, callback := range callbacks {
		cb := callback
		go func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("config change callback panicked", zap.Any("panic", r))
				}
			}()
			cb(newConfig)
		}()
	}
}

func (w *Watcher) logEditorChanges(old, updated Config) {
	var changes []string
	if old.Editor.DevicePollInterval != updated.Editor.DevicePollInterval {
		changes = append(changes, fmt.Sprintf("device_poll_interval: %s -> %s",
			old.Editor.DevicePollInterval, updated.Editor.DevicePollInterval))
	}
	if old.Editor.AlertPollInterval != updated.Editor.AlertPollInterval {
		changes = append(changes, fmt.Sprintf("alert_poll_interval: %s -> %s",
			old.Editor.AlertPollInterval, updated.Editor.AlertPollInterval))
	}
	if old.Editor.AutosaveDelay != updated.Editor.AutosaveDelay {
		changes = append(changes, fmt.Sprintf("autosave_delay: %s -> %s",
			old.Editor.AutosaveDelay, updated.Editor.AutosaveDelay))
	}
	if old.Editor.LivenessWindow != updated.Editor.LivenessWindow {
		changes = append(changes, fmt.Sprintf("liveness_window: %s -> %s",
			old.Editor.LivenessWindow, updated.Editor.LivenessWindow))
	}
	if old.Editor.AutoDetectGateways != updated.Editor.AutoDetectGateways {
		changes = append(changes, fmt.Sprintf("auto_detect_gateways: %v -> %v",
			old.Editor.AutoDetectGateways, updated.Editor.AutoDetectGateways))
	}
	if len(changes) > 0 {
		w.logger.Info("editor configuration changed", zap.Strings("changes", changes))
	}
}
