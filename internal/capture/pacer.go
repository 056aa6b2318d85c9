package capture

import (
	"context"
	"time"

	"github.com/satindergrewal/slidestream/internal/audio"
)

// Clock is the part of the session bus a pacer needs.
type Clock interface {
	Pending() bool
	Wake() <-chan struct{}
}

// Pacer decides when the capture pulls its next 20ms frame.
type Pacer interface {
	// Next blocks until a frame may be pulled. It returns false once stop is
	// closed or ctx ends.
	Next(ctx context.Context, clock Clock, stop <-chan struct{}) bool
	Close()
}

type realtimePacer struct {
	ticker *time.Ticker
}

// NewRealtimePacer paces frames at wall-clock rate. Live monitoring needs it.
// The clock starts with the first playback or dwell, so a recording never
// opens on frames captured before the first slide was drawn.
func NewRealtimePacer() Pacer {
	return &realtimePacer{}
}

func (p *realtimePacer) Next(ctx context.Context, clock Clock, stop <-chan struct{}) bool {
	if p.ticker == nil {
		if !awaitPending(ctx, clock, stop) {
			return false
		}
		p.ticker = time.NewTicker(audio.FrameDuration)
	}
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-p.ticker.C:
		return true
	}
}

func (p *realtimePacer) Close() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

type offlinePacer struct{}

// NewOfflinePacer pulls frames as fast as the encoder accepts them, but only
// while a playback or dwell timer is pending. Idle gaps between slides
// therefore add no media time and output is deterministic.
func NewOfflinePacer() Pacer {
	return offlinePacer{}
}

func (offlinePacer) Next(ctx context.Context, clock Clock, stop <-chan struct{}) bool {
	return awaitPending(ctx, clock, stop)
}

// awaitPending blocks until clock has a playback or timer waiting.
func awaitPending(ctx context.Context, clock Clock, stop <-chan struct{}) bool {
	for {
		select {
		case <-stop:
			return false
		case <-ctx.Done():
			return false
		default:
		}
		if clock.Pending() {
			return true
		}
		select {
		case <-stop:
			return false
		case <-ctx.Done():
			return false
		case <-clock.Wake():
		}
	}
}

func (offlinePacer) Close() {}
