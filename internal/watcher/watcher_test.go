package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/slidestream/internal/logger"
)

type handled struct {
	mu    sync.Mutex
	decks []string
	hit   chan struct{}
}

func (h *handled) handle(_ context.Context, deck string) error {
	h.mu.Lock()
	h.decks = append(h.decks, deck)
	h.mu.Unlock()
	h.hit <- struct{}{}
	return nil
}

func (h *handled) list() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.decks...)
}

func TestWatcherHandlesSettledDeckOnce(t *testing.T) {
	input := t.TempDir()
	h := &handled{hit: make(chan struct{}, 4)}
	w, err := New(input, h.handle, logger.Nop(), 100*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	deck := filepath.Join(input, "quarterly")
	require.NoError(t, os.Mkdir(deck, 0755))
	for i := 0; i < 3; i++ {
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, os.WriteFile(filepath.Join(deck, "slide.png"), []byte{byte(i)}, 0644))
	}

	select {
	case <-h.hit:
	case <-time.After(5 * time.Second):
		t.Fatal("deck was never handled")
	}
	// Give a stray second trigger a chance to show up.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, []string{deck}, h.list())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherIgnoresFilesAndHiddenEntries(t *testing.T) {
	input := t.TempDir()
	h := &handled{hit: make(chan struct{}, 4)}
	w, err := New(input, h.handle, logger.Nop(), 50*time.Millisecond)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(input, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(input, ".partial"), 0755))

	select {
	case <-h.hit:
		t.Fatalf("unexpected deck handled: %v", h.list())
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDeckFor(t *testing.T) {
	w := &implWatcher{inputDir: "/in"}
	tests := []struct {
		path, want string
	}{
		{"/in/deck", "/in/deck"},
		{"/in/deck/slide-1.png", "/in/deck"},
		{"/in/deck/narration/a.wav", "/in/deck"},
		{"/in/.tmp/x", ""},
		{"/in", ""},
		{"/elsewhere/deck", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.deckFor(tt.path), tt.path)
	}
}

func TestNewMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil, logger.Nop(), time.Second)
	assert.Error(t, err)
}
