package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBusClosed is returned when playing into a bus that has been closed.
var ErrBusClosed = errors.New("audio bus closed")

// Router connects narration buffers to a session bus. Every playback feeds the
// capture tap; when monitoring is on it also feeds the monitor tap.
type Router struct {
	bus     *Bus
	monitor bool
}

// NewRouter creates a router over bus.
func NewRouter(bus *Bus, monitor bool) *Router {
	return &Router{bus: bus, monitor: monitor}
}

// Playback is a single play of one buffer. It cannot be restarted.
type Playback struct {
	bus      *Bus
	src      *source
	duration time.Duration
	stopOnce sync.Once
}

// Play converts buf to the bus format and starts it on the next pulled frame.
func (r *Router) Play(buf *Buffer) (*Playback, error) {
	converted, err := Convert(buf, SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("prepare playback: %w", err)
	}
	src, err := r.bus.connect(converted.Samples, r.monitor)
	if err != nil {
		return nil, err
	}
	return &Playback{bus: r.bus, src: src, duration: converted.Duration()}, nil
}

// Done is closed when the last sample of the buffer has been pulled.
func (p *Playback) Done() <-chan struct{} {
	return p.src.done
}

// Duration is the natural length of the converted buffer.
func (p *Playback) Duration() time.Duration {
	return p.duration
}

// Stop disconnects the playback. Done does not fire for a stopped playback
// unless it had already finished.
func (p *Playback) Stop() {
	p.stopOnce.Do(func() { p.bus.disconnect(p.src) })
}
