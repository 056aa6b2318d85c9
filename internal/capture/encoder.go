package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FPS is the fixed capture frame rate.
const FPS = 30

// Bitrate policy: base rate at scale 1, growing with the square of the scale.
const (
	BaseBitrate = 8_000_000
	MaxBitrate  = 100_000_000
)

var (
	// ErrStart is returned when the capture resource cannot be opened.
	ErrStart = errors.New("capture start failed")
	// ErrEmptyOutput is returned when a stopped capture delivered no data.
	ErrEmptyOutput = errors.New("capture produced no output")
	// ErrAborted is delivered when the capture is aborted instead of stopped.
	ErrAborted = errors.New("capture aborted")
)

// Format is the output container.
type Format string

const (
	WebM Format = "webm"
	MP4  Format = "mp4"
)

// ParseFormat accepts "webm" or "mp4".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case WebM, MP4:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (expected webm|mp4)", s)
	}
}

// Ext is the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// MIMEType is the content type of the container.
func (f Format) MIMEType() string {
	if f == MP4 {
		return "video/mp4"
	}
	return "video/webm"
}

// TargetBitrate returns BaseBitrate * scale^2 capped at MaxBitrate.
func TargetBitrate(scale int) int {
	if scale < 1 {
		scale = 1
	}
	return min(BaseBitrate*scale*scale, MaxBitrate)
}

// Params configures an encoder.
type Params struct {
	Width        int
	Height       int
	FPS          int
	VideoBitrate int
	SampleRate   int
	Channels     int
	Format       Format
}

// Encoder turns raw RGBA frames and s16le PCM into a container. Output is
// handed to the sink in order as it becomes available.
type Encoder interface {
	Begin(ctx context.Context, p Params, sink func([]byte)) error
	WriteVideo(rgba []byte) error
	WriteAudio(pcm []byte) error
	// End flushes the inputs and blocks until every output chunk was delivered.
	End() error
	// Kill releases the encoder immediately, discarding output.
	Kill()
}
