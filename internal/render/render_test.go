package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionFor(t *testing.T) {
	tests := []struct {
		ratio AspectRatio
		scale int
		want  Resolution
	}{
		{Landscape, 1, Resolution{1280, 720}},
		{Portrait, 2, Resolution{1440, 2560}},
		{Square, 3, Resolution{3240, 3240}},
		{Classic, 4, Resolution{4096, 3072}},
	}
	for _, tt := range tests {
		t.Run(string(tt.ratio), func(t *testing.T) {
			got, err := ResolutionFor(tt.ratio, tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolutionForRejectsBadInput(t *testing.T) {
	_, err := ResolutionFor("21:9", 1)
	assert.ErrorIs(t, err, ErrAspectRatio)

	_, err = ResolutionFor(Landscape, 0)
	assert.ErrorIs(t, err, ErrScale)

	_, err = ResolutionFor(Landscape, 5)
	assert.ErrorIs(t, err, ErrScale)
}

func TestParseAspectRatio(t *testing.T) {
	for _, in := range []string{"9:16", "9-16", " 9x16 "} {
		got, err := ParseAspectRatio(in)
		require.NoError(t, err, in)
		assert.Equal(t, Portrait, got)
	}
	_, err := ParseAspectRatio("3:2")
	assert.ErrorIs(t, err, ErrAspectRatio)
}

func TestToken(t *testing.T) {
	assert.Equal(t, "16-9", Landscape.Token())
	assert.Equal(t, "1-1", Square.Token())
}

func TestLetterbox(t *testing.T) {
	tests := []struct {
		name           string
		iw, ih, cw, ch int
		want           image.Rectangle
	}{
		{"same aspect upscales", 640, 360, 1280, 720, image.Rect(0, 0, 1280, 720)},
		{"square into landscape pillarboxes", 500, 500, 1280, 720, image.Rect(280, 0, 1000, 720)},
		{"wide into portrait letterboxes", 1920, 1080, 720, 1280, image.Rect(0, 437, 720, 842)},
		{"exact fit", 1024, 768, 1024, 768, image.Rect(0, 0, 1024, 768)},
		{"degenerate", 0, 10, 100, 100, image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Letterbox(tt.iw, tt.ih, tt.cw, tt.ch))
		})
	}
}

func TestNewCanvasRejectsBadSize(t *testing.T) {
	_, err := NewCanvas(0, 720)
	assert.ErrorIs(t, err, ErrNoSurface)

	_, err = NewCanvas(100000, 100000)
	assert.ErrorIs(t, err, ErrNoSurface)
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func pixel(buf []byte, w, x, y int) color.RGBA {
	off := (y*w + x) * 4
	return color.RGBA{buf[off], buf[off+1], buf[off+2], buf[off+3]}
}

func TestDrawLetterboxesWithBackground(t *testing.T) {
	canvas, err := NewCanvas(16, 9)
	require.NoError(t, err)
	r := NewRenderer(canvas)

	red := color.RGBA{255, 0, 0, 255}
	require.NoError(t, r.Draw(solid(9, 9, red)))
	assert.Equal(t, 1, r.Draws())

	snap := canvas.Snapshot(nil)
	require.Len(t, snap, 16*9*4)
	// 9x9 centred on 16x9 sits at x=3..11
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, pixel(snap, 16, 0, 4))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, pixel(snap, 16, 15, 4))
	assert.Equal(t, red, pixel(snap, 16, 7, 4))
}

func TestDrawCustomBackground(t *testing.T) {
	canvas, err := NewCanvas(4, 4)
	require.NoError(t, err)
	white := color.RGBA{255, 255, 255, 255}
	r := NewRenderer(canvas, WithBackground(white))

	require.NoError(t, r.Draw(solid(4, 2, color.RGBA{0, 0, 255, 255})))
	snap := canvas.Snapshot(nil)
	assert.Equal(t, white, pixel(snap, 4, 0, 0))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, pixel(snap, 4, 0, 1))
}

type decodeFunc func(ctx context.Context) (image.Image, error)

func (f decodeFunc) Decode(ctx context.Context) (image.Image, error) { return f(ctx) }

func TestRenderWaitsForDecode(t *testing.T) {
	canvas, err := NewCanvas(8, 8)
	require.NoError(t, err)
	r := NewRenderer(canvas)

	ready := make(chan image.Image)
	src := decodeFunc(func(ctx context.Context) (image.Image, error) {
		select {
		case img := <-ready:
			return img, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	done := make(chan error, 1)
	go func() { done <- r.Render(context.Background(), src) }()

	assert.Equal(t, 0, r.Draws())
	ready <- solid(8, 8, color.RGBA{1, 2, 3, 255})
	require.NoError(t, <-done)
	assert.Equal(t, 1, r.Draws())
}

func TestRenderPropagatesDecodeError(t *testing.T) {
	canvas, err := NewCanvas(8, 8)
	require.NoError(t, err)
	r := NewRenderer(canvas)

	boom := errors.New("not an image")
	err = r.Render(context.Background(), decodeFunc(func(context.Context) (image.Image, error) {
		return nil, boom
	}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Draws())
}

func TestPresentRejectsWrongSize(t *testing.T) {
	canvas, err := NewCanvas(8, 8)
	require.NoError(t, err)
	assert.Error(t, canvas.Present(image.NewRGBA(image.Rect(0, 0, 4, 4))))
}
