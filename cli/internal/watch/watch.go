// Package watch re-runs a callback when a file is saved.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/satishbabariya/aql-go/internal/debug"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// Watcher observes one file.
type Watcher struct {
	path     string
	debounce time.Duration
}

// New returns a watcher for file. A non-positive debounce selects DefaultDebounce.
func New(file string, debounce time.Duration) (*Watcher, error) {
	path, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", file, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: path, debounce: debounce}, nil
}

// Run calls onChange once, then again after every quiet period following a write to
// the file, until ctx is done. Errors returned by onChange are logged and do not stop
// the loop.
func (w *Watcher) Run(ctx context.Context, onChange func() error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	// Editors that save by rename replace the file, so the directory is watched.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	call := func() {
		if err := onChange(); err != nil {
			debug.Warn("watch callback failed", "file", w.path, "error", err)
		}
	}
	call()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if p, err := filepath.Abs(ev.Name); err != nil || p != w.path {
				continue
			}
			timer.Reset(w.debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			call()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			debug.Warn("watch error", "file", w.path, "error", err)
		}
	}
}
