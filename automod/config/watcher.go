package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Calls OnChange after the configuration file is written, created, or replaced. Bursts of events within Debounce are collapsed into one call.
//
// The parent directory is watched rather than the file itself, so that editors which save by rename are still noticed.
type Watcher struct {
	Path     string
	Debounce time.Duration
	OnChange func()
	Logger   *slog.Logger
}

func NewWatcher(path string, onChange func()) *Watcher {
	return &Watcher{
		Path:     path,
		Debounce: 500 * time.Millisecond,
		OnChange: onChange,
		Logger:   slog.Default().With("component", "config-watcher"),
	}
}

// Blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Logger == nil {
		w.Logger = slog.Default()
	}
	path, err := filepath.Abs(w.Path)
	if err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	var mu sync.Mutex
	var timer *time.Timer
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()
	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.Debounce, w.OnChange)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(evt.Name) != path {
				continue
			}
			if evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) || evt.Has(fsnotify.Rename) {
				w.Logger.Debug("config file changed", "path", evt.Name, "op", evt.Op.String())
				trigger()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Error("config watcher error", "err", err)
		}
	}
}
