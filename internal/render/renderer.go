package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	xdraw "golang.org/x/image/draw"
)

// Source is an image whose decode may still be in flight.
type Source interface {
	Decode(ctx context.Context) (image.Image, error)
}

// Renderer paints letterboxed slides onto a canvas.
type Renderer struct {
	canvas     *Canvas
	background color.Color
	scaler     xdraw.Scaler
	draws      atomic.Int64
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithBackground sets the letterbox fill colour (default black).
func WithBackground(c color.Color) Option {
	return func(r *Renderer) { r.background = c }
}

// WithScaler sets the interpolator used to resize slides (default Catmull-Rom).
func WithScaler(s xdraw.Scaler) Option {
	return func(r *Renderer) { r.scaler = s }
}

// NewRenderer creates a renderer drawing onto canvas.
func NewRenderer(canvas *Canvas, opts ...Option) *Renderer {
	r := &Renderer{
		canvas:     canvas,
		background: color.Black,
		scaler:     xdraw.CatmullRom,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Draws returns how many frames have been presented.
func (r *Renderer) Draws() int {
	return int(r.draws.Load())
}

// Render waits for src to decode, then paints it as the next frame.
func (r *Renderer) Render(ctx context.Context, src Source) error {
	img, err := src.Decode(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.Draw(img)
}

// Draw paints img letterboxed onto a fresh frame and presents it.
func (r *Renderer) Draw(img image.Image) error {
	w, h := r.canvas.Size()
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(frame, frame.Bounds(), image.NewUniform(r.background), image.Point{}, xdraw.Src)

	b := img.Bounds()
	if b.Empty() {
		return fmt.Errorf("draw: empty image %v", b)
	}
	dst := Letterbox(b.Dx(), b.Dy(), w, h)
	if dst.Dx() == b.Dx() && dst.Dy() == b.Dy() {
		xdraw.Draw(frame, dst, img, b.Min, xdraw.Over)
	} else {
		r.scaler.Scale(frame, dst, img, b, xdraw.Over, nil)
	}

	if err := r.canvas.Present(frame); err != nil {
		return err
	}
	r.draws.Add(1)
	return nil
}

// Letterbox returns where an iw x ih image lands on a cw x ch canvas when
// scaled uniformly to fit without cropping and centred on both axes.
func Letterbox(iw, ih, cw, ch int) image.Rectangle {
	if iw <= 0 || ih <= 0 || cw <= 0 || ch <= 0 {
		return image.Rectangle{}
	}
	sw := float64(cw) / float64(iw)
	sh := float64(ch) / float64(ih)
	scale := min(sw, sh)

	nw := int(float64(iw)*scale + 0.5)
	nh := int(float64(ih)*scale + 0.5)
	nw = min(max(nw, 1), cw)
	nh = min(max(nh, 1), ch)

	x := (cw - nw) / 2
	y := (ch - nh) / 2
	return image.Rect(x, y, x+nw, y+nh)
}
