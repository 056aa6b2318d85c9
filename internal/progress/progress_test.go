package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/slidestream/internal/logger"
)

func TestTrackerMonotonicPerSession(t *testing.T) {
	tr := NewTracker(16)
	tr.Report(Event{SessionID: "a", Kind: KindProgress, Percent: 33})
	tr.Report(Event{SessionID: "a", Kind: KindState, Percent: 0, State: "Waiting"})
	tr.Report(Event{SessionID: "a", Kind: KindProgress, Percent: 66})

	var got []int
	for len(tr.Events()) > 0 {
		got = append(got, (<-tr.Events()).Percent)
	}
	assert.Equal(t, []int{33, 33, 66}, got)

	// A new session starts from zero again.
	tr.Report(Event{SessionID: "b", Kind: KindProgress, Percent: 0})
	latest, ok := tr.Latest()
	require.True(t, ok)
	assert.Equal(t, "b", latest.SessionID)
	assert.Equal(t, 0, latest.Percent)
}

func TestTrackerClampsAndStamps(t *testing.T) {
	tr := NewTracker(1)
	tr.Report(Event{SessionID: "a", Percent: 250})
	latest, _ := tr.Latest()
	assert.Equal(t, 100, latest.Percent)
	assert.False(t, latest.At.IsZero())

	tr.Report(Event{SessionID: "b", Percent: -5})
	latest, _ = tr.Latest()
	assert.Equal(t, 0, latest.Percent)
}

func TestTrackerDropsWhenFull(t *testing.T) {
	tr := NewTracker(1)
	tr.Report(Event{SessionID: "a", Percent: 10})
	tr.Report(Event{SessionID: "a", Percent: 20})

	require.Len(t, tr.Events(), 1)
	assert.Equal(t, 10, (<-tr.Events()).Percent)
	latest, _ := tr.Latest()
	assert.Equal(t, 20, latest.Percent, "latest stays current even when the feed drops")
}

func TestTrackerEmpty(t *testing.T) {
	_, ok := NewTracker(4).Latest()
	assert.False(t, ok)
}

func TestMultiSkipsNil(t *testing.T) {
	var a, b []Event
	r := Multi(ReporterFunc(func(e Event) { a = append(a, e) }), nil, ReporterFunc(func(e Event) { b = append(b, e) }))
	r.Report(Event{Kind: KindDone})
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(logger.NewWithWriter(&buf, "info"))
	r.Report(Event{SessionID: "s1", Kind: KindProgress, Percent: 66})
	r.Report(Event{SessionID: "s1", Kind: KindState, State: "Drawing"})
	r.Report(Event{SessionID: "s1", Kind: KindError, Message: "A slide image could not be decoded."})

	out := buf.String()
	assert.Contains(t, out, "export s1: 66%")
	assert.NotContains(t, out, "Drawing", "state changes log at debug")
	assert.Contains(t, out, "could not be decoded")
}

func TestEventTerminal(t *testing.T) {
	assert.True(t, Event{Kind: KindDone}.Terminal())
	assert.True(t, Event{Kind: KindError}.Terminal())
	assert.False(t, Event{Kind: KindProgress}.Terminal())
}
