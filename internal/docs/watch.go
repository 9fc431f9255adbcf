package docs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"claude-knowledge/internal/logging"
)

// Watcher re-indexes Markdown files under a directory as they change, for
// long-running hook processes that don't want a full rescan on every
// session boundary.
type Watcher struct {
	store       *Store
	fsw         *fsnotify.Watcher
	debounceDur time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a Watcher rooted at dir. Call Run to start it and
// Stop to shut it down.
func NewWatcher(store *Store, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(fsw, dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		store:       store,
		fsw:         fsw,
		debounceDur: 500 * time.Millisecond,
		lastSeen:    make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

func addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if info.Name() == "node_modules" || info.Name() == ".git" {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

// Run processes filesystem events until ctx is cancelled or Stop is
// called. It blocks, so callers typically run it in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.DocsWarn("watch error: %v", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !isMarkdown(ev.Name) {
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.mu.Lock()
	now := time.Now()
	if last, ok := w.lastSeen[ev.Name]; ok && now.Sub(last) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.lastSeen[ev.Name] = now
	w.mu.Unlock()

	if _, err := w.store.IndexDocument(ctx, ev.Name, IndexOptions{}); err != nil {
		logging.DocsWarn("watch re-index failed for %s: %v", ev.Name, err)
	}
}

// Stop shuts the watcher down and waits for Run to return.
func (w *Watcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.fsw.Close()
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}
