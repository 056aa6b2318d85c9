package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/satindergrewal/slidestream/internal/audio"
)

// Surface is the visual source sampled for every video frame.
type Surface interface {
	Snapshot(dst []byte) []byte
}

// Mixer is the audio source pulled for every 20ms frame. *audio.Bus implements it.
type Mixer interface {
	Clock
	Pull(capture, monitor []int16) audio.Signals
	Now() time.Duration
}

// Delivery is what a stopped recorder hands back, once.
type Delivery struct {
	Chunks      [][]byte
	Size        int
	VideoFrames int
	AudioFrames int
	Duration    time.Duration
	Err         error
}

// Recorder is the capture resource of a session. A pump goroutine pulls audio
// frames from the mixer, samples the surface at FPS on the same media clock
// and feeds both to the encoder.
type Recorder struct {
	enc     Encoder
	surface Surface
	mixer   Mixer
	pacer   Pacer
	params  Params
	monitor chan<- []int16

	mu     sync.Mutex
	chunks [][]byte
	size   int

	stop     chan struct{}
	stopOnce sync.Once
	halted   chan struct{}
	pumpErr  error
	started  bool

	videoFrames int
	audioFrames int

	delivery chan Delivery
	endOnce  sync.Once
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithMonitor copies every mixed monitor frame to ch. Frames are dropped when
// ch is full so a slow listener never stalls the capture.
func WithMonitor(ch chan<- []int16) RecorderOption {
	return func(r *Recorder) { r.monitor = ch }
}

// NewRecorder wires a recorder. Nothing runs until Start.
func NewRecorder(enc Encoder, surface Surface, mixer Mixer, pacer Pacer, p Params, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		enc:      enc,
		surface:  surface,
		mixer:    mixer,
		pacer:    pacer,
		params:   p,
		stop:     make(chan struct{}),
		halted:   make(chan struct{}),
		delivery: make(chan Delivery, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start opens the encoder and begins pulling frames immediately.
func (r *Recorder) Start(ctx context.Context) error {
	if r.started {
		return fmt.Errorf("%w: already started", ErrStart)
	}
	p := r.params
	if p.Width <= 0 || p.Height <= 0 || p.FPS <= 0 || p.SampleRate <= 0 || p.Channels <= 0 {
		return fmt.Errorf("%w: invalid params %+v", ErrStart, p)
	}
	if err := r.enc.Begin(ctx, p, r.collect); err != nil {
		return err
	}
	r.started = true
	go r.run(ctx)
	return nil
}

func (r *Recorder) collect(chunk []byte) {
	r.mu.Lock()
	r.chunks = append(r.chunks, chunk)
	r.size += len(chunk)
	r.mu.Unlock()
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.halted)
	defer r.pacer.Close()

	capture := make([]int16, audio.FrameSamples)
	var monitor []int16
	if r.monitor != nil {
		monitor = make([]int16, audio.FrameSamples)
	}

	for r.pacer.Next(ctx, r.mixer, r.stop) {
		due := r.mixer.Pull(capture, monitor)
		if err := r.enc.WriteAudio(audio.SamplesToBytes(capture)); err != nil {
			r.pumpErr = err
			return
		}
		r.audioFrames++

		if monitor != nil {
			frame := make([]int16, len(monitor))
			copy(frame, monitor)
			select {
			case r.monitor <- frame:
			default:
			}
		}

		// Frame k is due once the media clock passes k/FPS seconds.
		now := int64(r.mixer.Now())
		for int64(r.videoFrames)*int64(time.Second) < now*int64(r.params.FPS) {
			if err := r.enc.WriteVideo(r.surface.Snapshot(nil)); err != nil {
				r.pumpErr = err
				return
			}
			r.videoFrames++
		}
		// Slide changes wait until this frame's video is out.
		due.Fire()
	}
	if err := ctx.Err(); err != nil && r.pumpErr == nil {
		select {
		case <-r.stop:
		default:
			r.pumpErr = err
		}
	}
}

// Halted is closed when the pump exits, either after Stop/Abort or because
// the encoder failed. Err explains the latter.
func (r *Recorder) Halted() <-chan struct{} {
	return r.halted
}

// Err returns the pump failure, valid after Halted.
func (r *Recorder) Err() error {
	return r.pumpErr
}

// Stop asks the pump to finish its current frame and the encoder to flush.
// The output arrives asynchronously on the returned channel, exactly once.
func (r *Recorder) Stop() <-chan Delivery {
	r.stopOnce.Do(func() { close(r.stop) })
	r.endOnce.Do(func() {
		if !r.started {
			r.delivery <- Delivery{Err: fmt.Errorf("%w: recorder never started", ErrEmptyOutput)}
			return
		}
		go r.finish()
	})
	return r.delivery
}

func (r *Recorder) finish() {
	<-r.halted
	endErr := r.enc.End()

	r.mu.Lock()
	d := Delivery{
		Chunks:      r.chunks,
		Size:        r.size,
		VideoFrames: r.videoFrames,
		AudioFrames: r.audioFrames,
		Duration:    time.Duration(r.audioFrames) * audio.FrameDuration,
	}
	r.chunks = nil
	r.mu.Unlock()

	switch {
	case r.pumpErr != nil:
		d.Err = fmt.Errorf("capture pump: %w", r.pumpErr)
	case endErr != nil:
		d.Err = endErr
	case d.Size == 0:
		d.Err = ErrEmptyOutput
	}
	r.delivery <- d
}

// Abort releases the capture without producing output. Safe to call at any
// point, including after Stop.
func (r *Recorder) Abort() {
	r.stopOnce.Do(func() { close(r.stop) })
	if !r.started {
		r.pacer.Close()
		return
	}
	r.endOnce.Do(func() {
		r.delivery <- Delivery{Err: ErrAborted}
	})
	r.enc.Kill()
	<-r.halted
	r.mu.Lock()
	r.chunks = nil
	r.mu.Unlock()
}
