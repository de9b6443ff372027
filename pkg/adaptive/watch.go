package adaptive

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/scanforge/scanforge/pkg/logging"
)

// StateWatcher watches an adaptive-state file for external changes (e.g. a
// concurrent scanforge process folding new telemetry) and reloads the
// in-memory State when one is detected, debounced to coalesce rapid
// successive writes from Store.Save's write-then-rename.
type StateWatcher struct {
	store  *Store
	target **State

	learningRate    float64
	minScansToAdapt int

	watcher       *fsnotify.Watcher
	debounceDelay time.Duration
	logger        zerolog.Logger

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewStateWatcher creates a watcher that reloads *target in place whenever
// store's backing file changes on disk.
func NewStateWatcher(store *Store, target **State, learningRate float64, minScansToAdapt int) (*StateWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &StateWatcher{
		store:           store,
		target:          target,
		learningRate:    learningRate,
		minScansToAdapt: minScansToAdapt,
		watcher:         w,
		debounceDelay:   100 * time.Millisecond,
		logger:          logging.NewLogger("adaptive.watcher", zerolog.InfoLevel),
	}, nil
}

// Start watches the state file's parent directory until ctx is cancelled.
// Run it in its own goroutine; it blocks until ctx.Done() or the watcher is
// closed.
func (w *StateWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.store.path)
	file := filepath.Base(w.store.path)

	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error().Err(err).Str("dir", dir).Msg("failed to watch adaptive state directory")
		return err
	}
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("adaptive state watcher error")
		}
	}
}

func (w *StateWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		reloaded, err := w.store.Load(w.learningRate, w.minScansToAdapt)
		if err != nil {
			w.logger.Error().Err(err).Msg("failed to reload adaptive state")
			return
		}
		*w.target = reloaded
	})
}

// Close stops the watcher.
func (w *StateWatcher) Close() error {
	return w.watcher.Close()
}
