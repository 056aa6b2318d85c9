package export

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satindergrewal/slidestream/internal/render"
)

// State is a step of the export state machine.
type State int

const (
	Idle State = iota
	Initializing
	Capturing
	Drawing
	Waiting
	Finalizing
	Done
	Errored
)

var stateNames = [...]string{
	Idle:         "Idle",
	Initializing: "Initializing",
	Capturing:    "Capturing",
	Drawing:      "Drawing",
	Waiting:      "Waiting",
	Finalizing:   "Finalizing",
	Done:         "Done",
	Errored:      "Errored",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Done || s == Errored
}

// Session is one export run. It exists from the Idle to Initializing
// transition until the run reaches Done or Errored.
type Session struct {
	ID      string
	Options Options
	Started time.Time

	mu         sync.Mutex
	resolution render.Resolution
	state      State
	history    []State
	position   int
	total      int
	percent    int
	size       int
	err        error
}

func newSession(opts Options, total int, now time.Time) *Session {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Session{
		ID:      id.String(),
		Options: opts,
		Started: now,
		total:   total,
		history: []State{Idle},
	}
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	s.state = to
	s.history = append(s.history, to)
	s.mu.Unlock()
}

func (s *Session) setResolution(r render.Resolution) {
	s.mu.Lock()
	s.resolution = r
	s.mu.Unlock()
}

// Resolution is the output size, known once Initializing succeeded.
func (s *Session) Resolution() render.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolution
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns every state the session went through, starting with Idle.
func (s *Session) History() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.history))
	copy(out, s.history)
	return out
}

// Position returns the zero-based slide position being worked on and the slide count.
func (s *Session) Position() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.total
}

// Percent returns the last reported progress.
func (s *Session) Percent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

// OutputSize returns the number of encoded bytes a Done session delivered.
func (s *Session) OutputSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Err returns the terminal error of an Errored session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Percent for slide position pos out of total, floored.
func percentAt(pos, total int) int {
	if total <= 0 {
		return 0
	}
	return pos * 100 / total
}

func (s *Session) advance(pos int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = pos
	s.percent = max(s.percent, percentAt(pos, s.total))
	return s.percent
}

// complete records the delivered size only; the bytes belong to the Result.
func (s *Session) complete(size int) {
	s.mu.Lock()
	s.size = size
	s.percent = 100
	s.mu.Unlock()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.size = 0
	s.mu.Unlock()
}
