package dataset

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a dataset file whenever it changes on disk.
//
// The parent directory is watched rather than the file itself so editors
// that replace files atomically are handled. Bursts of events are debounced.
type Watcher struct {
	path     string
	debounce time.Duration
	fw       *fsnotify.Watcher
	logger   *log.Logger
}

// NewWatcher starts watching path. Events are delivered once Run is called.
func NewWatcher(path string, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{path: abs, debounce: debounce, fw: fw, logger: logger}, nil
}

// Run delivers reloaded datasets to onChange until ctx is done. Reload
// failures are logged and skipped. Run closes the watcher on return.
func (w *Watcher) Run(ctx context.Context, onChange func(*Dataset)) error {
	defer w.fw.Close()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			logger(w.logger).Warn("watch", "path", w.path, "err", err)

		case <-fire:
			src := &FileSource{Path: w.path, Logger: w.logger}
			ds, err := src.Load(ctx)
			if err != nil {
				logger(w.logger).Warn("reload failed", "path", w.path, "err", err)
				continue
			}
			logger(w.logger).Info("dataset reloaded", "path", w.path)
			onChange(ds)
		}
	}
}
