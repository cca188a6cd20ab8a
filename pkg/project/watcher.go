package project

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a Store's registry directory for external edits —
// a human editing a project's markdown file directly outside the
// running process — and invalidates the Store's in-memory cache so the
// next Get re-parses from disk and runs conflict detection on resume.
// Watches a single flat directory (registries do not nest) with
// per-slug debouncing rather than a single coalesced channel.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	log      *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher builds a Watcher for store, which must have a registry
// directory configured.
func NewWatcher(store *Store, log *slog.Logger) (*Watcher, error) {
	if store.registryDir == "" {
		return nil, fmt.Errorf("project: watcher requires a configured registry directory")
	}
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("project: new fsnotify watcher: %w", err)
	}
	return &Watcher{
		store:    store,
		watcher:  fw,
		log:      log,
		debounce: 250 * time.Millisecond,
		pending:  make(map[string]time.Time),
	}, nil
}

// Start adds the registry directory to the watch set and begins
// processing events in a background goroutine until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.store.registryDir); err != nil {
		return fmt.Errorf("project: watch registry dir %s: %w", w.store.registryDir, err)
	}
	go w.loop(ctx)
	w.log.Info("watching registry directory for external edits", "dir", w.store.registryDir)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("registry watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".md") {
		return
	}
	slug := strings.TrimSuffix(filepath.Base(event.Name), ".md")

	w.mu.Lock()
	seen := time.Now()
	w.pending[slug] = seen
	w.mu.Unlock()

	time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		last, ok := w.pending[slug]
		fire := ok && last == seen
		if fire {
			delete(w.pending, slug)
		}
		w.mu.Unlock()
		if fire {
			w.store.invalidate(slug)
			w.log.Debug("registry file changed externally, cache invalidated", "project_id", slug)
		}
	})
}
