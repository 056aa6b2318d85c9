package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// DecodeFile runs FFmpeg to decode an audio file into a bus-format Buffer
// (interleaved stereo int16 at 48kHz). An empty bin means "ffmpeg" on PATH.
func DecodeFile(ctx context.Context, bin, path string) (*Buffer, error) {
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"-loglevel", "error",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffmpeg decode %s: %w\nstderr: %s", path, err, msg)
		}
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	buf := &Buffer{SampleRate: SampleRate, Channels: Channels, Samples: BytesToSamples(out)}
	// Drop a trailing partial frame
	buf.Samples = buf.Samples[:buf.Frames()*Channels]
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return buf, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples converts little-endian bytes to int16 samples.
// A trailing odd byte is ignored.
func BytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	return samples
}

// WriteWAV writes the buffer as a canonical 16-bit PCM RIFF/WAVE stream.
func WriteWAV(w io.Writer, b *Buffer) error {
	if err := b.Validate(); err != nil {
		return err
	}
	dataLen := uint32(len(b.Samples) * 2)
	blockAlign := uint16(b.Channels * BitDepth / 8)

	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	binary.Write(&hdr, binary.LittleEndian, 36+dataLen)
	hdr.WriteString("WAVEfmt ")
	binary.Write(&hdr, binary.LittleEndian, uint32(16))
	binary.Write(&hdr, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&hdr, binary.LittleEndian, uint16(b.Channels))
	binary.Write(&hdr, binary.LittleEndian, uint32(b.SampleRate))
	binary.Write(&hdr, binary.LittleEndian, uint32(b.SampleRate)*uint32(blockAlign))
	binary.Write(&hdr, binary.LittleEndian, blockAlign)
	binary.Write(&hdr, binary.LittleEndian, uint16(BitDepth))
	hdr.WriteString("data")
	binary.Write(&hdr, binary.LittleEndian, dataLen)

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(SamplesToBytes(b.Samples)); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}
