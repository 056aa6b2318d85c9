package audio

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidBuffer is returned for buffers with a bad rate, channel count or sample layout.
	ErrInvalidBuffer = errors.New("invalid audio buffer")
	// ErrEmptyBuffer is returned when a buffer holds no sample frames.
	ErrEmptyBuffer = errors.New("empty audio buffer")
)

// Buffer is decoded PCM audio with interleaved int16 samples.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the natural playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(b.Frames()) * int64(time.Second) / int64(b.SampleRate))
}

// Validate reports whether the buffer can be played.
func (b *Buffer) Validate() error {
	if b == nil {
		return ErrEmptyBuffer
	}
	if b.SampleRate <= 0 || b.Channels <= 0 || b.Channels > 8 {
		return fmt.Errorf("%w: rate=%d channels=%d", ErrInvalidBuffer, b.SampleRate, b.Channels)
	}
	if len(b.Samples)%b.Channels != 0 {
		return fmt.Errorf("%w: %d samples not divisible by %d channels", ErrInvalidBuffer, len(b.Samples), b.Channels)
	}
	if len(b.Samples) == 0 {
		return ErrEmptyBuffer
	}
	return nil
}

// Convert returns the buffer resampled to rate and remapped to channels.
// Resampling is linear; mono is duplicated when upmixing and channels are
// averaged when downmixing to mono. A buffer already in the target format is
// returned as is.
func Convert(b *Buffer, rate, channels int) (*Buffer, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.SampleRate == rate && b.Channels == channels {
		return b, nil
	}

	src := remap(b.Samples, b.Channels, channels)
	if b.SampleRate == rate {
		return &Buffer{SampleRate: rate, Channels: channels, Samples: src}, nil
	}

	inFrames := len(src) / channels
	outFrames := int(int64(inFrames) * int64(rate) / int64(b.SampleRate))
	if outFrames == 0 {
		return nil, ErrEmptyBuffer
	}
	out := make([]int16, outFrames*channels)
	step := float64(b.SampleRate) / float64(rate)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		i0 := int(pos)
		frac := pos - float64(i0)
		i1 := i0 + 1
		if i1 >= inFrames {
			i1 = inFrames - 1
		}
		for c := 0; c < channels; c++ {
			a := float64(src[i0*channels+c])
			z := float64(src[i1*channels+c])
			out[i*channels+c] = clip(a + (z-a)*frac)
		}
	}
	return &Buffer{SampleRate: rate, Channels: channels, Samples: out}, nil
}

func remap(samples []int16, from, to int) []int16 {
	if from == to {
		return samples
	}
	frames := len(samples) / from
	out := make([]int16, frames*to)
	for f := 0; f < frames; f++ {
		in := samples[f*from : (f+1)*from]
		switch {
		case to == 1:
			var sum float64
			for _, s := range in {
				sum += float64(s)
			}
			out[f] = clip(sum / float64(from))
		case from == 1:
			for c := 0; c < to; c++ {
				out[f*to+c] = in[0]
			}
		default:
			for c := 0; c < to; c++ {
				out[f*to+c] = in[c%from]
			}
		}
	}
	return out
}

// clip rounds and clamps a mixed sample to the int16 range.
func clip(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	if v < 0 {
		return int16(v - 0.5)
	}
	return int16(v + 0.5)
}
