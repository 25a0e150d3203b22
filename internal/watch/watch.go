// Package watch notifies the editor when an open document changes on
// disk, so the UI can offer to reload it.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a path must stay quiet before a change
// is reported. Editors and PDF writers often emit several Write events
// for one save.
const DefaultDebounce = 250 * time.Millisecond

// Change identifies one externally modified document.
type Change struct {
	Path string
}

// Watcher watches the files of open documents and reports debounced
// changes on C.
type Watcher struct {
	C        <-chan Change
	out      chan Change
	fs       *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	paths   map[string]bool      // watched file paths
	pending map[string]*time.Timer
}

// New starts a Watcher. Close it when done.
func New(debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	out := make(chan Change, 8)
	w := &Watcher{
		C:        out,
		out:      out,
		fs:       fs,
		debounce: debounce,
		paths:    make(map[string]bool),
		pending:  make(map[string]*time.Timer),
	}
	return w, nil
}

// Add starts watching path. The parent directory is watched rather
// than the file itself so atomic save-via-rename is still seen.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.paths[abs] = true
	w.mu.Unlock()
	return w.fs.Add(filepath.Dir(abs))
}

// Remove stops watching path. The directory watch stays in place; it
// may still cover other open documents.
func (w *Watcher) Remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	delete(w.paths, abs)
	if t, ok := w.pending[abs]; ok {
		t.Stop()
		delete(w.pending, abs)
	}
	w.mu.Unlock()
}

// Run dispatches fsnotify events until ctx is cancelled. Each watched
// path gets its own debounce window; a burst of writes yields one
// Change after the path goes quiet.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.mu.Lock()
			if !w.paths[abs] {
				w.mu.Unlock()
				continue
			}
			if t, ok := w.pending[abs]; ok {
				t.Stop()
			}
			w.pending[abs] = time.AfterFunc(w.debounce, func() {
				w.mu.Lock()
				delete(w.pending, abs)
				still := w.paths[abs]
				w.mu.Unlock()
				if !still {
					return
				}
				select {
				case w.out <- Change{Path: abs}:
				default:
					// Drop rather than block the timer goroutine; the
					// UI will pick up the next change.
				}
			})
			w.mu.Unlock()

		case _, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
		}
	}
}
