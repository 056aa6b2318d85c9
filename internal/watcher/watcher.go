package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/satindergrewal/slidestream/internal/logger"
)

type implWatcher struct {
	inputDir string
	handler  EventHandler
	logger   logger.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
	wg     sync.WaitGroup
}

// Start watches until ctx ends. Decks already present are left alone.
func (w *implWatcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "Deck watcher started (debounce %v). Monitoring: %s", w.debounce, w.inputDir)

	w.wg.Add(1)
	go w.work(ctx)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.logger.Info(ctx, "Waiting for the running export to complete...")
			w.wg.Wait()
			w.logger.Info(ctx, "Deck watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error(ctx, "Watcher error: %v", err)
		}
	}
}

// Stop closes the file watcher
func (w *implWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *implWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	deck := w.deckFor(event.Name)
	if deck == "" {
		return
	}
	info, err := os.Stat(deck)
	if err != nil || !info.IsDir() {
		w.logger.Debug(ctx, "Ignoring non-deck entry: %s", event.Name)
		return
	}
	if event.Name == deck && event.Op&fsnotify.Create != 0 {
		if err := w.watcher.Add(deck); err != nil {
			w.logger.Warn(ctx, "Cannot watch %s: %v", deck, err)
		}
		w.logger.Info(ctx, "New deck detected: %s", deck)
	}
	w.schedule(ctx, deck)
}

// deckFor maps any path below the input directory to its top-level entry.
// Hidden entries are ignored.
func (w *implWatcher) deckFor(path string) string {
	rel, err := filepath.Rel(w.inputDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	first := strings.Split(rel, string(filepath.Separator))[0]
	if strings.HasPrefix(first, ".") {
		return ""
	}
	return filepath.Join(w.inputDir, first)
}

func (w *implWatcher) schedule(ctx context.Context, deck string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[deck]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[deck] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, deck)
		w.mu.Unlock()
		select {
		case w.ready <- deck:
		case <-ctx.Done():
		}
	})
}

func (w *implWatcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for deck, t := range w.timers {
		t.Stop()
		delete(w.timers, deck)
	}
}

// work runs the handler for settled decks, strictly one after another.
func (w *implWatcher) work(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case deck := <-w.ready:
			w.logger.Info(ctx, "Processing deck: %s", deck)
			if err := w.handler(ctx, deck); err != nil {
				w.logger.Error(ctx, "Failed to process %s: %v", deck, err)
			}
		}
	}
}
