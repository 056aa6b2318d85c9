package audio

import (
	"sync"
	"time"
)

// Bus is the audio context of one recording session. It mixes the connected
// playbacks into 20ms frames on demand and doubles as the media clock: time
// only advances when the capture pulls a frame, so completion signals and
// dwell timers line up exactly with what was recorded.
type Bus struct {
	mu      sync.Mutex
	sources []*source
	timers  []*timer
	pos     int64 // sample frames pulled so far
	closed  bool
	wake    chan struct{}
}

type source struct {
	samples []int16
	off     int
	monitor bool
	done    chan struct{}
}

type timer struct {
	at int64
	ch chan struct{}
}

// NewBus creates an empty bus at media time zero.
func NewBus() *Bus {
	return &Bus{wake: make(chan struct{}, 1)}
}

// Now returns the media time covered by the frames pulled so far.
func (b *Bus) Now() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return DurationOf(b.pos)
}

// After returns a channel closed once the media clock has advanced by d.
// It never fires on a closed bus.
func (b *Bus) After(d time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ch
	}
	if d <= 0 {
		close(ch)
		return ch
	}
	b.timers = append(b.timers, &timer{at: b.pos + FramesFor(d), ch: ch})
	b.notify()
	return ch
}

// Pending reports whether a playback or timer is waiting on the clock.
func (b *Bus) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && (len(b.sources) > 0 || len(b.timers) > 0)
}

// Wake is signalled whenever a playback or timer is added.
func (b *Bus) Wake() <-chan struct{} {
	return b.wake
}

// Signals are the completion channels made due by one Pull.
type Signals []chan struct{}

// Fire closes every signal. Call it once everything recorded for the pulled
// frame, video included, has been written.
func (s Signals) Fire() {
	for _, ch := range s {
		close(ch)
	}
}

// Pull mixes one frame into capture and, when non-nil, monitor. Both must
// hold FrameSamples samples. Playbacks that run out and timers that expire
// during this frame are returned unfired; the caller fires them.
func (b *Bus) Pull(capture, monitor []int16) Signals {
	var capAcc, monAcc [FrameSamples]int32

	b.mu.Lock()
	live := b.sources[:0]
	var finished []*source
	for _, s := range b.sources {
		n := len(s.samples) - s.off
		if n > FrameSamples {
			n = FrameSamples
		}
		chunk := s.samples[s.off : s.off+n]
		for i, v := range chunk {
			capAcc[i] += int32(v)
			if s.monitor {
				monAcc[i] += int32(v)
			}
		}
		s.off += n
		if s.off >= len(s.samples) {
			finished = append(finished, s)
			continue
		}
		live = append(live, s)
	}
	for i := len(live); i < len(b.sources); i++ {
		b.sources[i] = nil
	}
	b.sources = live
	if !b.closed {
		b.pos += FrameSize
	}

	var expired []*timer
	waiting := b.timers[:0]
	for _, t := range b.timers {
		if t.at <= b.pos {
			expired = append(expired, t)
			continue
		}
		waiting = append(waiting, t)
	}
	for i := len(waiting); i < len(b.timers); i++ {
		b.timers[i] = nil
	}
	b.timers = waiting
	b.mu.Unlock()

	clamp(capture, capAcc[:])
	if monitor != nil {
		clamp(monitor, monAcc[:])
	}
	due := make(Signals, 0, len(finished)+len(expired))
	for _, s := range finished {
		due = append(due, s.done)
	}
	for _, t := range expired {
		due = append(due, t.ch)
	}
	return due
}

// Close disconnects every playback and timer without firing them.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.sources = nil
	b.timers = nil
	b.notify()
}

func (b *Bus) connect(samples []int16, monitor bool) (*source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	s := &source{samples: samples, monitor: monitor, done: make(chan struct{})}
	b.sources = append(b.sources, s)
	b.notify()
	return s, nil
}

func (b *Bus) disconnect(s *source) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.sources {
		if cur == s {
			b.sources = append(b.sources[:i], b.sources[i+1:]...)
			return
		}
	}
}

// notify must be called with mu held.
func (b *Bus) notify() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func clamp(dst []int16, acc []int32) {
	for i := range dst {
		v := acc[i]
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		dst[i] = int16(v)
	}
}
