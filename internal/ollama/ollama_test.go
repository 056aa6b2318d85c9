package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/slidestream/internal/logger"
	"github.com/satindergrewal/slidestream/internal/slides"
)

func fakeOllama(t *testing.T, reply string, status int) (*httptest.Server, *generateRequest) {
	t.Helper()
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/generate":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			if status != http.StatusOK {
				http.Error(w, "model not found", status)
				return
			}
			json.NewEncoder(w).Encode(generateResponse{Response: reply, Done: true})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestScriptWriter(t *testing.T) {
	srv, req := fakeOllama(t, "<think>hmm</think>\n\"Revenue grew steadily.\nMost of it came from renewals.\"", http.StatusOK)
	w := NewScriptWriter(NewClient(srv.URL+"/", "llama3", 0.5, logger.Nop()))

	script, err := w.Script(context.Background(), &slides.Slide{Index: 4, SourceText: "Q3 revenue +12%"}, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew steadily. Most of it came from renewals.", script)

	assert.Equal(t, "llama3", req.Model)
	assert.False(t, req.Stream)
	assert.Contains(t, req.Prompt, "Slide 2 of 5")
	assert.Contains(t, req.Prompt, "Q3 revenue +12%")
	assert.Equal(t, 0.5, req.Options["temperature"])
}

func TestScriptWriterNoText(t *testing.T) {
	w := NewScriptWriter(NewClient("http://127.0.0.1:1", "m", 0.5, logger.Nop()))
	_, err := w.Script(context.Background(), &slides.Slide{Index: 0, SourceText: "  "}, 0, 1)
	assert.True(t, errors.Is(err, ErrNoText))
}

func TestScriptWriterServerError(t *testing.T) {
	srv, _ := fakeOllama(t, "", http.StatusNotFound)
	w := NewScriptWriter(NewClient(srv.URL, "missing", 0.5, logger.Nop()))
	_, err := w.Script(context.Background(), &slides.Slide{Index: 2, SourceText: "text"}, 0, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama status 404")
}

func TestClientAvailable(t *testing.T) {
	srv, _ := fakeOllama(t, "", http.StatusOK)
	c := NewClient(srv.URL, "m", 0.5, logger.Nop())
	assert.True(t, c.Available(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.True(t, c.WaitForReady(ctx, 10*time.Millisecond))
}

func TestWaitForReadyGivesUp(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "m", 0.5, logger.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.False(t, c.WaitForReady(ctx, 10*time.Millisecond))
}

func TestCleanScript(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Narration: Welcome to the deck.", "Welcome to the deck."},
		{"  plain text  ", "plain text"},
		{"\"quoted\"", "quoted"},
		{"line one\n\nline two", "line one line two"},
	}
	for _, tt := range tests {
		if got := cleanScript(tt.in); got != tt.want {
			t.Errorf("cleanScript(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	assert.False(t, strings.Contains(cleanScript("<think>x</think>ok then"), "think"))
}
