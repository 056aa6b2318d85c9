package slides

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrDecode wraps every failure to turn raw bytes into a raster.
var ErrDecode = errors.New("image decode failed")

// Image is a slide raster whose decode runs in the background on first use.
// Decode may be awaited any number of times; the work happens once.
type Image struct {
	name string
	raw  []byte

	once sync.Once
	done chan struct{}
	img  image.Image
	err  error
}

// NewImage wraps encoded bytes (PNG, JPEG, GIF, WebP or BMP).
func NewImage(name string, raw []byte) *Image {
	return &Image{name: name, raw: raw, done: make(chan struct{})}
}

// NewDecodedImage wraps an already decoded raster.
func NewDecodedImage(name string, img image.Image) *Image {
	i := &Image{name: name, done: make(chan struct{}), img: img}
	i.once.Do(func() { close(i.done) })
	return i
}

// Name returns the source name, usually the file the image came from.
func (i *Image) Name() string { return i.name }

// Raw returns the encoded bytes, or nil for a pre-decoded image.
func (i *Image) Raw() []byte { return i.raw }

// MIMEType sniffs the encoded bytes.
func (i *Image) MIMEType() string {
	if len(i.raw) == 0 {
		return ""
	}
	return http.DetectContentType(i.raw)
}

// Prefetch starts decoding without waiting for it.
func (i *Image) Prefetch() {
	i.once.Do(func() {
		go func() {
			defer close(i.done)
			i.img, i.err = decode(i.name, i.raw)
		}()
	})
}

// Decode waits for the raster, starting the decode if needed.
func (i *Image) Decode(ctx context.Context) (image.Image, error) {
	i.Prefetch()
	select {
	case <-i.done:
		return i.img, i.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func decode(name string, raw []byte) (img image.Image, err error) {
	defer func() {
		// Some codecs panic on hostile input.
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, r)
		}
	}()
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s: no data", ErrDecode, name)
	}
	img, _, err = image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	return img, nil
}
