package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/satindergrewal/slidestream/internal/audio"
	"github.com/satindergrewal/slidestream/internal/capture"
	"github.com/satindergrewal/slidestream/internal/render"
	"github.com/satindergrewal/slidestream/internal/slides"
)

// Dwell is how long a slide without narration stays on screen.
const Dwell = 3000 * time.Millisecond

var (
	// ErrBusy is returned when an export is requested while another runs.
	ErrBusy = errors.New("export already in progress")
	// ErrCancelled is the terminal error of a cancelled export.
	ErrCancelled = errors.New("export cancelled")
	// ErrNoNarration is returned when narration is required but none decoded.
	ErrNoNarration = errors.New("no narration audio available")
)

// Source is the deck the sequencer reads. *slides.Store implements it.
type Source interface {
	Slides() []*slides.Slide
	DecodedNarration(index int) *audio.Buffer
}

// Options are the per-export user choices.
type Options struct {
	AspectRatio      render.AspectRatio `json:"aspect_ratio" yaml:"aspect_ratio"`
	Scale            int                `json:"scale" yaml:"scale"`
	Format           capture.Format     `json:"format" yaml:"format"`
	Monitor          bool               `json:"monitor" yaml:"monitor"`
	RequireNarration bool               `json:"require_narration" yaml:"require_narration"`
}

func (o Options) withDefaults() Options {
	if o.AspectRatio == "" {
		o.AspectRatio = render.Landscape
	}
	if o.Scale == 0 {
		o.Scale = render.MinScale
	}
	if o.Format == "" {
		o.Format = capture.WebM
	}
	return o
}

// Result is the finished video of a successful export.
type Result struct {
	SessionID   string
	Filename    string
	Format      capture.Format
	Data        []byte
	Resolution  render.Resolution
	VideoFrames int
	Duration    time.Duration
}

// Filename builds SlideStream_<ratio>_<scale>x_<unix millis>.<ext>.
func Filename(o Options, at time.Time) string {
	return fmt.Sprintf("SlideStream_%s_%dx_%d.%s", o.AspectRatio.Token(), o.Scale, at.UnixMilli(), o.Format.Ext())
}

// UserMessage turns an export error into one sentence fit for an end user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return "Another export is already running. Wait for it to finish or cancel it."
	case errors.Is(err, ErrCancelled):
		return "Export cancelled."
	case errors.Is(err, ErrNoNarration):
		return "No narration audio is available for this deck."
	case errors.Is(err, render.ErrAspectRatio), errors.Is(err, render.ErrScale):
		return "Unsupported aspect ratio or scale: " + err.Error() + "."
	case errors.Is(err, render.ErrNoSurface):
		return "Could not allocate a drawing surface at the requested resolution."
	case errors.Is(err, capture.ErrStart):
		return "Recording could not start. Check that ffmpeg is installed and supports the chosen format."
	case errors.Is(err, slides.ErrDecode):
		return "A slide image could not be decoded: " + err.Error() + "."
	case errors.Is(err, capture.ErrEmptyOutput):
		return "Recording finished but produced no video data."
	default:
		msg := err.Error()
		if msg != "" {
			msg = strings.ToUpper(msg[:1]) + msg[1:]
		}
		return "Export failed: " + msg + "."
	}
}
