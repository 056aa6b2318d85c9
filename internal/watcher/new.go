package watcher

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/satindergrewal/slidestream/internal/logger"
)

// New creates a Watcher over inputDir. A deck is handed to handler once no
// file inside it changed for debounce. Decks are handled one at a time.
func New(inputDir string, handler EventHandler, log logger.Logger, debounce time.Duration) (Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(inputDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	return &implWatcher{
		inputDir: inputDir,
		handler:  handler,
		logger:   log,
		watcher:  watcher,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
		ready:    make(chan string, 64),
	}, nil
}
