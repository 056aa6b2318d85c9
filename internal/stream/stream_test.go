package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/slidestream/internal/logger"
	"github.com/satindergrewal/slidestream/internal/progress"
)

func TestProgressHandlerSendsLatestThenUpdates(t *testing.T) {
	tracker := progress.NewTracker(16)
	tracker.Report(progress.Event{SessionID: "s1", Kind: progress.KindProgress, Percent: 33})
	<-tracker.Events() // drained by the broadcaster in production

	b := NewBroadcaster[progress.Event](16)
	h := NewProgressHandler(b, tracker, nil, logger.Nop())
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first progress.Event
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "s1", first.SessionID)
	assert.Equal(t, 33, first.Percent)

	require.Eventually(t, func() bool { return b.ListenerCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	b.Publish(progress.Event{SessionID: "s1", Kind: progress.KindDone, Percent: 100, Filename: "out.webm"})

	var next progress.Event
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, progress.KindDone, next.Kind)
	assert.Equal(t, "out.webm", next.Filename)

	conn.Close()
	assert.Eventually(t, func() bool { return b.ListenerCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestProgressHandlerRejectsPlainHTTP(t *testing.T) {
	h := NewProgressHandler(NewBroadcaster[progress.Event](1), progress.NewTracker(1), nil, logger.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/progress", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitorArgs(t *testing.T) {
	h := NewHTTPHandler(NewPCMBroadcaster(), "", logger.Nop())
	args := strings.Join(h.Args(), " ")
	assert.Contains(t, args, "-ar 48000 -ac 2 -i pipe:0")
	assert.Contains(t, args, "libmp3lame")
	assert.Equal(t, "ffmpeg", h.ffmpeg)
}

func TestMonitorHTTPFailsWithoutFFmpeg(t *testing.T) {
	h := NewHTTPHandler(NewPCMBroadcaster(), "/nonexistent/ffmpeg", logger.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monitor/stream", nil).WithContext(ctx))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebRTCRequiresPost(t *testing.T) {
	h := NewWebRTCHandler(NewPCMBroadcaster(), logger.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monitor/offer", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/monitor/offer", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, h.PeerCount())
}
