package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/satindergrewal/slidestream/internal/audio"
	"github.com/satindergrewal/slidestream/internal/capture"
	"github.com/satindergrewal/slidestream/internal/progress"
	"github.com/satindergrewal/slidestream/internal/render"
	"github.com/satindergrewal/slidestream/internal/slides"
)

// handler runs the work of one state and returns the next state.
type handler func(s *sequencer) State

var handlers = map[State]handler{
	Initializing: (*sequencer).initialize,
	Capturing:    (*sequencer).capture,
	Drawing:      (*sequencer).draw,
	Waiting:      (*sequencer).wait,
	Finalizing:   (*sequencer).finalize,
	Done:         (*sequencer).done,
	Errored:      (*sequencer).errored,
}

// sequencer drives one session through the state machine. It owns the
// canvas, bus and recorder of the session.
type sequencer struct {
	ctx    context.Context
	cfg    *Config
	sess   *Session
	src    Source
	slides []*slides.Slide
	pos    int

	canvas   *render.Canvas
	renderer *render.Renderer
	bus      *audio.Bus
	router   *audio.Router
	rec      *capture.Recorder
	playback *audio.Playback

	delivery capture.Delivery
	result   *Result
	err      error
}

func newSequencer(ctx context.Context, cfg *Config, sess *Session, src Source, deck []*slides.Slide) *sequencer {
	ordered := slices.Clone(deck)
	slices.SortStableFunc(ordered, func(a, b *slides.Slide) int { return a.Index - b.Index })
	return &sequencer{ctx: ctx, cfg: cfg, sess: sess, src: src, slides: ordered}
}

func (s *sequencer) run() (*Result, error) {
	state := Initializing
	for {
		s.sess.transition(state)
		s.report(progress.Event{Kind: progress.KindState, State: state.String(), Percent: s.sess.Percent()})
		next := handlers[state](s)
		if state.Terminal() {
			break
		}
		state = next
	}
	return s.result, s.err
}

func (s *sequencer) report(e progress.Event) {
	e.SessionID = s.sess.ID
	if e.At.IsZero() {
		e.At = s.cfg.Now()
	}
	s.cfg.Reporter.Report(e)
}

// fail records err and routes the machine to Errored. Anything observed
// after cancellation is reported as ErrCancelled.
func (s *sequencer) fail(err error) State {
	if s.ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
		err = fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	s.err = err
	return Errored
}

func (s *sequencer) initialize() State {
	opts := s.sess.Options
	res, err := render.ResolutionFor(opts.AspectRatio, opts.Scale)
	if err != nil {
		return s.fail(err)
	}
	s.sess.setResolution(res)

	s.canvas, err = render.NewCanvas(res.Width, res.Height)
	if err != nil {
		return s.fail(err)
	}
	s.renderer = render.NewRenderer(s.canvas, s.cfg.RenderOptions...)

	monitor := opts.Monitor && s.cfg.Monitor != nil
	s.bus = audio.NewBus()
	s.router = audio.NewRouter(s.bus, monitor)

	pacer := capture.NewOfflinePacer()
	if s.cfg.Realtime || monitor {
		pacer = capture.NewRealtimePacer()
	}
	var recOpts []capture.RecorderOption
	if monitor {
		recOpts = append(recOpts, capture.WithMonitor(s.cfg.Monitor))
	}
	params := capture.Params{
		Width:        res.Width,
		Height:       res.Height,
		FPS:          capture.FPS,
		VideoBitrate: capture.TargetBitrate(opts.Scale),
		SampleRate:   audio.SampleRate,
		Channels:     audio.Channels,
		Format:       opts.Format,
	}
	s.rec = capture.NewRecorder(s.cfg.NewEncoder(), s.canvas, s.bus, pacer, params, recOpts...)

	s.cfg.Logger.Info(s.ctx, "export %s: %d slides at %s (%s x%d, %s, %d bps)",
		s.sess.ID, len(s.slides), res, opts.AspectRatio, opts.Scale, opts.Format, params.VideoBitrate)
	return Capturing
}

func (s *sequencer) capture() State {
	if err := s.rec.Start(s.ctx); err != nil {
		return s.fail(err)
	}
	return Drawing
}

func (s *sequencer) draw() State {
	if s.ctx.Err() != nil {
		return s.fail(ErrCancelled)
	}
	pct := s.sess.advance(s.pos)
	s.report(progress.Event{Kind: progress.KindProgress, State: Drawing.String(), Percent: pct})

	sl := s.slides[s.pos]
	if err := s.renderer.Render(s.ctx, sl.Image); err != nil {
		return s.fail(fmt.Errorf("slide %d: %w", sl.Index, err))
	}
	s.cfg.Logger.Debug(s.ctx, "export %s: drew slide %d (%d/%d)", s.sess.ID, sl.Index, s.pos+1, len(s.slides))
	return Waiting
}

func (s *sequencer) wait() State {
	sl := s.slides[s.pos]
	if s.pos+1 < len(s.slides) {
		s.slides[s.pos+1].Image.Prefetch()
	}

	var until <-chan struct{}
	if buf := s.src.DecodedNarration(sl.Index); buf != nil {
		pb, err := s.router.Play(buf)
		if err != nil {
			s.cfg.Logger.Warn(s.ctx, "export %s: slide %d narration did not play, holding %v instead: %v",
				s.sess.ID, sl.Index, s.cfg.Dwell, err)
		} else {
			s.playback = pb
			until = pb.Done()
		}
	}
	if until == nil {
		until = s.bus.After(s.cfg.Dwell)
	}

	select {
	case <-until:
	case <-s.ctx.Done():
		return s.fail(ErrCancelled)
	case <-s.rec.Halted():
		err := s.rec.Err()
		if err == nil {
			err = errors.New("capture stopped unexpectedly")
		}
		return s.fail(err)
	}
	s.playback = nil

	s.pos++
	if s.pos < len(s.slides) {
		return Drawing
	}
	return Finalizing
}

func (s *sequencer) finalize() State {
	select {
	case d := <-s.rec.Stop():
		if d.Err != nil {
			return s.fail(d.Err)
		}
		s.delivery = d
		return Done
	case <-s.ctx.Done():
		return s.fail(ErrCancelled)
	}
}

func (s *sequencer) done() State {
	s.bus.Close()
	d := s.delivery
	s.delivery.Chunks = nil
	s.sess.complete(d.Size)

	opts := s.sess.Options
	s.result = &Result{
		SessionID:   s.sess.ID,
		Filename:    Filename(opts, s.cfg.Now()),
		Format:      opts.Format,
		Data:        bytes.Join(d.Chunks, nil),
		Resolution:  s.sess.Resolution(),
		VideoFrames: d.VideoFrames,
		Duration:    d.Duration,
	}
	s.report(progress.Event{Kind: progress.KindProgress, State: Done.String(), Percent: 100})
	s.report(progress.Event{Kind: progress.KindDone, State: Done.String(), Percent: 100, Filename: s.result.Filename})
	s.cfg.Logger.Info(s.ctx, "export %s: wrote %s (%d bytes, %d frames, %v)",
		s.sess.ID, s.result.Filename, len(s.result.Data), d.VideoFrames, d.Duration)
	return Done
}

func (s *sequencer) errored() State {
	if s.playback != nil {
		s.playback.Stop()
		s.playback = nil
	}
	if s.rec != nil {
		s.rec.Abort()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	s.delivery = capture.Delivery{}
	s.sess.fail(s.err)

	msg := UserMessage(s.err)
	s.report(progress.Event{Kind: progress.KindError, State: Errored.String(), Percent: s.sess.Percent(), Message: msg})
	s.cfg.Logger.Error(s.ctx, "export %s: %v", s.sess.ID, s.err)
	return Errored
}
