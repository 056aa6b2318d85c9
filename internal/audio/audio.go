package audio

import "time"

// Bus format. Every narration buffer is converted to this before it is mixed.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// FramesFor returns how many sample frames (per channel) span d at SampleRate.
func FramesFor(d time.Duration) int64 {
	return int64(d) * SampleRate / int64(time.Second)
}

// DurationOf converts a sample frame count at SampleRate to a duration.
func DurationOf(frames int64) time.Duration {
	return time.Duration(frames * int64(time.Second) / SampleRate)
}
