package watcher

import "context"

// Watcher monitors an input directory for new decks.
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// EventHandler processes one deck directory that stopped changing.
type EventHandler func(ctx context.Context, deckDir string) error
