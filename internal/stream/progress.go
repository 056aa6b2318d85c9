package stream

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/satindergrewal/slidestream/internal/logger"
	"github.com/satindergrewal/slidestream/internal/progress"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// Snapshotter returns the most recent progress event.
type Snapshotter interface {
	Latest() (progress.Event, bool)
}

// ProgressHandler pushes export progress events to websocket clients as
// JSON. A new client first receives the latest event, then every update.
type ProgressHandler struct {
	broadcaster *Broadcaster[progress.Event]
	latest      Snapshotter
	upgrader    websocket.Upgrader
	log         logger.Logger
}

// NewProgressHandler creates a progress websocket handler. checkOrigin may be
// nil to accept same-origin requests only.
func NewProgressHandler(b *Broadcaster[progress.Event], latest Snapshotter, checkOrigin func(*http.Request) bool, log logger.Logger) *ProgressHandler {
	return &ProgressHandler{
		broadcaster: b,
		latest:      latest,
		upgrader:    websocket.Upgrader{CheckOrigin: checkOrigin},
		log:         log,
	}
}

func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(ctx, "progress websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)
	h.log.Debug(ctx, "progress client connected (total: %d)", h.broadcaster.ListenerCount())

	// Reads only detect the close; clients have nothing to say.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.log.Debug(ctx, "progress client read: %v", err)
				}
				return
			}
		}
	}()

	if ev, ok := h.latest.Latest(); ok {
		if err := h.send(conn, ev); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-listener.Done():
			return
		case ev := <-listener.C:
			if err := h.send(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *ProgressHandler) send(conn *websocket.Conn, ev progress.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
