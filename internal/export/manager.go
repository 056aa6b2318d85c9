package export

import (
	"context"
	"sync"
	"time"

	"github.com/satindergrewal/slidestream/internal/capture"
	"github.com/satindergrewal/slidestream/internal/logger"
	"github.com/satindergrewal/slidestream/internal/progress"
	"github.com/satindergrewal/slidestream/internal/render"
	"github.com/satindergrewal/slidestream/internal/slides"
)

// Config wires a Manager to its collaborators.
type Config struct {
	// NewEncoder returns a fresh encoder for every session.
	NewEncoder func() capture.Encoder
	// Realtime paces capture at wall-clock rate even without monitoring.
	Realtime bool
	// Dwell overrides the hold time of slides without narration.
	Dwell time.Duration
	// Monitor receives mixed narration frames when Options.Monitor is set.
	Monitor chan<- []int16

	RenderOptions []render.Option
	Reporter      progress.Reporter
	Logger        logger.Logger
	Now           func() time.Time
}

// Outcome is the end of an asynchronous export.
type Outcome struct {
	Session *Session
	Result  *Result
	Err     error
}

// Manager enforces at most one active export and lets callers cancel it.
type Manager struct {
	cfg Config

	mu     sync.Mutex
	active *Session
	cancel context.CancelFunc
	last   *Session
}

// NewManager creates a Manager, filling in defaults for unset Config fields.
func NewManager(cfg Config) *Manager {
	if cfg.NewEncoder == nil {
		cfg.NewEncoder = func() capture.Encoder { return capture.NewFFmpegEncoder("ffmpeg") }
	}
	if cfg.Dwell <= 0 {
		cfg.Dwell = Dwell
	}
	if cfg.Reporter == nil {
		cfg.Reporter = progress.ReporterFunc(func(progress.Event) {})
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg}
}

// Export runs one export to completion. Zero slides is a no-op: no session
// is created and both return values are nil.
func (m *Manager) Export(ctx context.Context, src Source, opts Options) (*Result, error) {
	sess, outcome, err := m.Start(ctx, src, opts)
	if err != nil || sess == nil {
		return nil, err
	}
	o := <-outcome
	return o.Result, o.Err
}

// Start reserves the single export slot and runs the export in the
// background. A nil Session with a nil error means there was nothing to do.
func (m *Manager) Start(ctx context.Context, src Source, opts Options) (*Session, <-chan Outcome, error) {
	deck := src.Slides()
	if len(deck) == 0 {
		m.cfg.Logger.Info(ctx, "export: deck has no slides, nothing to do")
		return nil, nil, nil
	}
	opts = opts.withDefaults()
	if opts.RequireNarration && !hasNarration(src, deck) {
		return nil, nil, ErrNoNarration
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, nil, ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	sess := newSession(opts, len(deck), m.cfg.Now())
	m.active = sess
	m.cancel = cancel
	m.mu.Unlock()

	out := make(chan Outcome, 1)
	go func() {
		defer cancel()
		res, err := newSequencer(runCtx, &m.cfg, sess, src, deck).run()

		m.mu.Lock()
		m.active = nil
		m.cancel = nil
		m.last = sess
		m.mu.Unlock()

		out <- Outcome{Session: sess, Result: res, Err: err}
	}()
	return sess, out, nil
}

func hasNarration(src Source, deck []*slides.Slide) bool {
	for _, sl := range deck {
		if src.DecodedNarration(sl.Index) != nil {
			return true
		}
	}
	return false
}

// Cancel stops the active export. It reports whether one was running.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Active returns the running session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Busy reports whether an export is running.
func (m *Manager) Busy() bool {
	return m.Active() != nil
}

// Last returns the most recently finished session, or nil.
func (m *Manager) Last() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
