// Package progress carries export progress and terminal errors from the
// sequencer to whoever is watching: the log, the CLI, the websocket.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/satindergrewal/slidestream/internal/logger"
)

// Kind tells listeners what an Event is about.
type Kind string

const (
	KindState    Kind = "state"
	KindProgress Kind = "progress"
	KindDone     Kind = "done"
	KindError    Kind = "error"
)

// Event is one progress notification. Percent never decreases within a session.
type Event struct {
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	Percent   int       `json:"percent"`
	State     string    `json:"state,omitempty"`
	Message   string    `json:"message,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	At        time.Time `json:"at"`
}

// Terminal reports whether the event ends its session.
func (e Event) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

// Reporter receives events. Implementations must not block.
type Reporter interface {
	Report(e Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Multi reports every event to each non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	var rs []Reporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return ReporterFunc(func(e Event) {
		for _, r := range rs {
			r.Report(e)
		}
	})
}

// Tracker keeps the latest event visible after a session ends and publishes
// every event on a buffered channel. Events are dropped when nobody drains it.
type Tracker struct {
	mu      sync.Mutex
	latest  Event
	has     bool
	percent int
	out     chan Event
}

// NewTracker creates a tracker whose Events channel buffers up to buffer events.
func NewTracker(buffer int) *Tracker {
	if buffer < 1 {
		buffer = 1
	}
	return &Tracker{out: make(chan Event, buffer)}
}

// Report clamps percent to 0..100, keeps it monotonic within a session and
// records the event as the latest one.
func (t *Tracker) Report(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.Percent = max(0, min(100, e.Percent))

	t.mu.Lock()
	if t.has && t.latest.SessionID == e.SessionID && e.Percent < t.percent {
		e.Percent = t.percent
	}
	t.percent = e.Percent
	t.latest = e
	t.has = true
	t.mu.Unlock()

	select {
	case t.out <- e:
	default:
	}
}

// Latest returns the most recent event, if any.
func (t *Tracker) Latest() (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.has
}

// Events is the feed of reported events.
func (t *Tracker) Events() <-chan Event {
	return t.out
}

// LogReporter writes events to a logger: errors at error level, progress at info.
type LogReporter struct {
	log logger.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Report(e Event) {
	ctx := context.Background()
	switch e.Kind {
	case KindError:
		r.log.Error(ctx, "export %s failed: %s", e.SessionID, e.Message)
	case KindDone:
		r.log.Info(ctx, "export %s done: %s", e.SessionID, e.Filename)
	case KindProgress:
		r.log.Info(ctx, "export %s: %d%%", e.SessionID, e.Percent)
	default:
		r.log.Debug(ctx, "export %s: state %s", e.SessionID, e.State)
	}
}
