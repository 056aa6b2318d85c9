package slides

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/satindergrewal/slidestream/internal/audio"
)

var (
	// ErrDuplicateIndex is returned when two slides claim the same index.
	ErrDuplicateIndex = errors.New("duplicate slide index")
	// ErrNegativeIndex is returned for indices below zero.
	ErrNegativeIndex = errors.New("negative slide index")
)

// Slide is one visual unit of the deck. Index defines playback order.
type Slide struct {
	Index      int
	Image      *Image
	SourceText string
}

// NarrationSegment is the script and optional decoded audio for one slide.
type NarrationSegment struct {
	SlideIndex int
	Script     string
	Audio      *audio.Buffer
	// AudioPath is where Audio was read from, relative to the deck directory.
	AudioPath string
}

// Store holds a deck: slides keyed by index plus at most one narration per slide.
type Store struct {
	mu        sync.RWMutex
	slides    map[int]*Slide
	narration map[int]*NarrationSegment
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		slides:    make(map[int]*Slide),
		narration: make(map[int]*NarrationSegment),
	}
}

// AddSlide inserts a slide. Indices must be unique and non-negative; gaps are fine.
func (s *Store) AddSlide(sl *Slide) error {
	if sl.Index < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeIndex, sl.Index)
	}
	if sl.Image == nil {
		return fmt.Errorf("slide %d has no image", sl.Index)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slides[sl.Index]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateIndex, sl.Index)
	}
	s.slides[sl.Index] = sl
	return nil
}

// SetNarration attaches or replaces the narration for a slide index.
func (s *Store) SetNarration(seg *NarrationSegment) error {
	if seg.SlideIndex < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeIndex, seg.SlideIndex)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.narration[seg.SlideIndex] = seg
	return nil
}

// Len returns the number of slides.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slides)
}

// Slides returns the slides sorted by ascending index.
func (s *Store) Slides() []*Slide {
	s.mu.RLock()
	out := make([]*Slide, 0, len(s.slides))
	for _, sl := range s.slides {
		out = append(out, sl)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Narration returns the segment for a slide, if any.
func (s *Store) Narration(index int) (*NarrationSegment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seg, ok := s.narration[index]
	return seg, ok
}

// DecodedNarration returns the decoded audio for a slide, or nil when the
// slide has no segment or the segment has no audio.
func (s *Store) DecodedNarration(index int) *audio.Buffer {
	seg, ok := s.Narration(index)
	if !ok || seg.Audio == nil {
		return nil
	}
	return seg.Audio
}

// NarratedCount returns how many slides have decoded audio.
func (s *Store) NarratedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for idx, seg := range s.narration {
		if _, ok := s.slides[idx]; ok && seg.Audio != nil {
			n++
		}
	}
	return n
}
