// Package watch reports debounced changes to a single scene file.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/logging"
)

// DefaultDebounce is used when New receives a non-positive debounce.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches the directory of one file so that editors replacing the
// file through a rename are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	fs       *fsnotify.Watcher
}

// New starts watching path.
func New(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %q: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		debounce: debounce,
		logger:   logging.NewComponentLogger(logger, "watch"),
		fs:       fsw,
	}, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Run calls onChange once the file has been quiet for the debounce window
// after one or more changes. It blocks until ctx is done or the watcher is
// closed.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context)) error {
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		pending int
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			pending++
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("watch event overflow, forcing reload", logging.Error(err))
				pending++
				if timer == nil {
					timer = time.NewTimer(w.debounce)
					timerCh = timer.C
				}
				continue
			}
			return fmt.Errorf("watch %s: %w", w.path, err)
		case <-timerCh:
			timer, timerCh = nil, nil
			w.logger.Debug("scene changed",
				logging.String("path", w.path),
				logging.Int("events", pending),
			)
			pending = 0
			onChange(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
