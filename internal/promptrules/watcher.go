package promptrules

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tw2kbot/tw2kbot/internal/logging"
)

// Watcher holds the active rule Set and hot-reloads it when the backing
// file changes, grounded on the teacher's cmd/vision3 ConfigWatcher:
// an fsnotify.Watcher on the containing directory, a debounce timer to
// collapse rapid successive writes, and an atomic pointer swap so
// in-flight readers never observe a half-loaded Set.
type Watcher struct {
	path string

	active atomic.Pointer[Set]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher loads path once and starts watching its parent directory for
// subsequent writes. Closing the returned Watcher stops the goroutine.
func NewWatcher(path string) (*Watcher, error) {
	initial, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create prompt rule watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		path:    path,
		watcher: fsw,
		done:    make(chan struct{}),
	}
	w.active.Store(initial)

	go w.loop()
	return w, nil
}

// Current returns the currently active rule Set.
func (w *Watcher) Current() *Set {
	return w.active.Load()
}

// Close stops the watcher goroutine and releases the fsnotify handle.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	const debounce = 500 * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("prompt rule watcher: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	next, err := loadFile(w.path)
	if err != nil {
		logging.Error("reload prompt rules from %s: %v", w.path, err)
		return
	}
	w.active.Store(next)
	logging.Info("reloaded prompt rules from %s (%d rules)", w.path, len(next.rules))
}

func loadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompt rules %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}
