package transcript

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"changelens/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Notifier receives transcript-change notifications. *summary.Controller
// satisfies it.
type Notifier interface {
	TranscriptChanged(sessionID, dir string)
}

// Watcher watches a directory of per-session *.jsonl transcript files,
// loads updated files into the store, and notifies the controller. Rapid
// appends from a streaming agent are debounced before the file is re-read.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	store       *Store
	notify      Notifier
	dir         string // transcript directory being watched
	defaultDir  string // workspace used when a file names no directory
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity for debugging.
type WatcherStats struct {
	EventsSeen    int
	FilesLoaded   int
	Notifications int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// NewWatcher creates a watcher over dir. defaultDir is the working
// directory assumed for sessions whose transcript names none.
func NewWatcher(store *Store, notify Notifier, dir, defaultDir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fsw,
		store:       store,
		notify:      notify,
		dir:         dir,
		defaultDir:  defaultDir,
		debounceMap: make(map[string]time.Time),
		debounceDur: 250 * time.Millisecond, // Debounce streaming appends
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start loads any existing transcript files, then begins watching.
// Non-blocking; the event loop runs on its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.Get(logging.CategoryWatcher).Warn("failed to create transcript dir %s: %v (continuing anyway)", w.dir, err)
	}

	if err := w.watcher.Add(w.dir); err != nil {
		logging.Get(logging.CategoryWatcher).Warn("initial watch failed (dir may not exist): %v", err)
	} else {
		logging.Watcher("watching transcript directory: %s", w.dir)
	}

	// Catch up on files written before we started watching.
	if entries, err := os.ReadDir(w.dir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
				continue
			}
			w.load(filepath.Join(w.dir, entry.Name()))
		}
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatcher).Error("error closing watcher: %v", err)
	}
	logging.Watcher("stopped")
}

// run is the main event loop for the watcher.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watcher("context cancelled")
			return

		case <-w.stopCh:
			logging.Watcher("stop signal received")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				logging.Watcher("event channel closed")
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				logging.Watcher("error channel closed")
				return
			}
			logging.Get(logging.CategoryWatcher).Error("watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebouncedEvents()
		}
	}
}

// handleEvent records a filesystem event for debounced processing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".jsonl") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return // Ignore chmod, remove, rename
	}

	logging.WatcherDebug("event %s for %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.EventsSeen++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = time.Now()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processDebouncedEvents loads files whose events settled past the debounce window.
func (w *Watcher) processDebouncedEvents() {
	w.mu.Lock()
	now := time.Now()
	toProcess := make([]string, 0)
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			toProcess = append(toProcess, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range toProcess {
		w.load(path)
	}
}

// load re-reads one transcript file and notifies the controller. Upserts
// make the re-read idempotent, so the whole file is loaded each time rather
// than tracking offsets.
func (w *Watcher) load(path string) {
	sessionID, dir, err := LoadFile(w.store, path, w.defaultDir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.WatcherDebug("file removed before load: %s", path)
			return
		}
		logging.Get(logging.CategoryWatcher).Error("failed to load %s: %v", path, err)
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.stats.FilesLoaded++
	w.stats.Notifications++
	w.mu.Unlock()

	logging.WatcherDebug("loaded %s (session=%s dir=%s)", path, sessionID, dir)
	w.notify.TranscriptChanged(sessionID, dir)
}

// Stats returns the current watcher statistics.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching returns true if the watcher is currently running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
