package render

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

// maxPixels caps a canvas at 8K UHD worth of pixels.
const maxPixels = 7680 * 4320

// ErrNoSurface is returned when a canvas of the requested size cannot be allocated.
var ErrNoSurface = errors.New("drawing surface unavailable")

// Canvas is the surface the capture samples. Frames are presented whole, so a
// sample never observes a half-drawn slide.
type Canvas struct {
	mu    sync.RWMutex
	frame *image.RGBA
	w, h  int
}

// NewCanvas allocates a canvas initialised to transparent black.
func NewCanvas(w, h int) (*Canvas, error) {
	if w <= 0 || h <= 0 || w*h > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrNoSurface, w, h)
	}
	return &Canvas{frame: image.NewRGBA(image.Rect(0, 0, w, h)), w: w, h: h}, nil
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() (int, int) {
	return c.w, c.h
}

// FrameBytes is the size of one RGBA snapshot.
func (c *Canvas) FrameBytes() int {
	return c.w * c.h * 4
}

// Present replaces the visible frame. img must match the canvas size.
func (c *Canvas) Present(img *image.RGBA) error {
	if b := img.Bounds(); b.Dx() != c.w || b.Dy() != c.h {
		return fmt.Errorf("present %dx%d frame on %dx%d canvas", b.Dx(), b.Dy(), c.w, c.h)
	}
	c.mu.Lock()
	c.frame = img
	c.mu.Unlock()
	return nil
}

// Snapshot copies the visible frame as packed RGBA into dst, growing it if needed.
func (c *Canvas) Snapshot(dst []byte) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.FrameBytes()
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	rowLen := c.w * 4
	for y := 0; y < c.h; y++ {
		off := y * c.frame.Stride
		copy(dst[y*rowLen:(y+1)*rowLen], c.frame.Pix[off:off+rowLen])
	}
	return dst
}
