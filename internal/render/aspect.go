package render

import (
	"errors"
	"fmt"
	"strings"
)

// AspectRatio is one of the supported output frame shapes.
type AspectRatio string

const (
	Landscape AspectRatio = "16:9"
	Portrait  AspectRatio = "9:16"
	Square    AspectRatio = "1:1"
	Classic   AspectRatio = "4:3"
)

// MinScale and MaxScale bound the resolution multiplier.
const (
	MinScale = 1
	MaxScale = 4
)

var (
	ErrAspectRatio = errors.New("unsupported aspect ratio")
	ErrScale       = errors.New("unsupported resolution scale")
)

// Resolution is an output frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

var baseSizes = map[AspectRatio]Resolution{
	Landscape: {1280, 720},
	Portrait:  {720, 1280},
	Square:    {1080, 1080},
	Classic:   {1024, 768},
}

// AspectRatios lists the supported ratios in display order.
func AspectRatios() []AspectRatio {
	return []AspectRatio{Landscape, Portrait, Square, Classic}
}

// ParseAspectRatio accepts "16:9" style values and the "16-9"/"16x9" tokens.
func ParseAspectRatio(s string) (AspectRatio, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.NewReplacer("-", ":", "x", ":", "/", ":").Replace(s)
	a := AspectRatio(s)
	if _, ok := baseSizes[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrAspectRatio, s)
	}
	return a, nil
}

// Base returns the scale-1 resolution for the ratio.
func (a AspectRatio) Base() (Resolution, bool) {
	r, ok := baseSizes[a]
	return r, ok
}

// Token is the filename-safe form of the ratio, e.g. "16-9".
func (a AspectRatio) Token() string {
	return strings.ReplaceAll(string(a), ":", "-")
}

// ResolutionFor multiplies the base size of a by scale.
func ResolutionFor(a AspectRatio, scale int) (Resolution, error) {
	base, ok := a.Base()
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %q", ErrAspectRatio, a)
	}
	if scale < MinScale || scale > MaxScale {
		return Resolution{}, fmt.Errorf("%w: %d (want %d-%d)", ErrScale, scale, MinScale, MaxScale)
	}
	return Resolution{Width: base.Width * scale, Height: base.Height * scale}, nil
}
