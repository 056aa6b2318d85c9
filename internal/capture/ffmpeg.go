package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

const readChunk = 64 * 1024

// FFmpegEncoder pipes raw video on stdin and PCM on fd 3 into an FFmpeg
// process and reads the muxed container from stdout.
type FFmpegEncoder struct {
	bin string

	cmd     *exec.Cmd
	cancel  context.CancelFunc
	stderr  bytes.Buffer
	videoCh chan []byte
	audioCh chan []byte
	writers sync.WaitGroup
	readErr chan error

	mu     sync.Mutex
	closed bool

	errMu    sync.Mutex
	writeErr error
}

// NewFFmpegEncoder creates an encoder using bin (default "ffmpeg").
func NewFFmpegEncoder(bin string) *FFmpegEncoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegEncoder{bin: bin}
}

// Args returns the FFmpeg command line for p.
func Args(p Params) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-r", strconv.Itoa(p.FPS),
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(p.SampleRate),
		"-ac", strconv.Itoa(p.Channels),
		"-i", "pipe:3",
		"-map", "0:v",
		"-map", "1:a",
		"-b:v", strconv.Itoa(p.VideoBitrate),
		"-pix_fmt", "yuv420p",
	}
	switch p.Format {
	case MP4:
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-c:a", "aac",
			"-b:a", "192k",
			"-movflags", "frag_keyframe+empty_moov+default_base_moof",
			"-f", "mp4",
		)
	default:
		args = append(args,
			"-c:v", "libvpx",
			"-deadline", "realtime",
			"-cpu-used", "8",
			"-c:a", "libopus",
			"-b:a", "128k",
			"-f", "webm",
		)
	}
	return append(args, "pipe:1")
}

// Begin starts FFmpeg. sink receives stdout chunks from a single goroutine.
func (e *FFmpegEncoder) Begin(ctx context.Context, p Params, sink func([]byte)) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cmd = exec.CommandContext(ctx, e.bin, Args(p)...)
	e.cmd.Stderr = &e.stderr

	videoIn, err := e.cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: stdin pipe: %v", ErrStart, err)
	}
	audioR, audioW, err := os.Pipe()
	if err != nil {
		cancel()
		return fmt.Errorf("%w: audio pipe: %v", ErrStart, err)
	}
	e.cmd.ExtraFiles = []*os.File{audioR}
	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		cancel()
		audioR.Close()
		audioW.Close()
		return fmt.Errorf("%w: stdout pipe: %v", ErrStart, err)
	}

	if err := e.cmd.Start(); err != nil {
		cancel()
		audioR.Close()
		audioW.Close()
		return fmt.Errorf("%w: %v", ErrStart, err)
	}
	// The child owns its copy now.
	audioR.Close()
	e.cancel = cancel

	// Separate writers per input so FFmpeg can drain them at its own pace.
	e.videoCh = make(chan []byte, 4)
	e.audioCh = make(chan []byte, 64)
	e.writers.Add(2)
	go e.pump(videoIn, e.videoCh)
	go e.pump(audioW, e.audioCh)

	e.readErr = make(chan error, 1)
	go func() {
		buf := make([]byte, readChunk)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				sink(chunk)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				e.readErr <- err
				return
			}
		}
	}()
	return nil
}

func (e *FFmpegEncoder) pump(w io.WriteCloser, ch <-chan []byte) {
	defer e.writers.Done()
	defer w.Close()
	for data := range ch {
		if _, err := w.Write(data); err != nil {
			e.setWriteErr(err)
			// Keep draining so producers never block on a dead pipe.
			for range ch {
			}
			return
		}
	}
}

func (e *FFmpegEncoder) setWriteErr(err error) {
	e.errMu.Lock()
	if e.writeErr == nil {
		e.writeErr = err
	}
	e.errMu.Unlock()
}

func (e *FFmpegEncoder) inputErr() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.writeErr
}

func (e *FFmpegEncoder) send(ch chan []byte, data []byte) error {
	if err := e.inputErr(); err != nil {
		return fmt.Errorf("ffmpeg input: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("encoder closed")
	}
	ch <- data
	return nil
}

// WriteVideo queues one RGBA frame. The slice is retained; callers pass a fresh buffer.
func (e *FFmpegEncoder) WriteVideo(rgba []byte) error { return e.send(e.videoCh, rgba) }

// WriteAudio queues one PCM frame.
func (e *FFmpegEncoder) WriteAudio(pcm []byte) error { return e.send(e.audioCh, pcm) }

func (e *FFmpegEncoder) closeInputs() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.closed = true
	close(e.videoCh)
	close(e.audioCh)
	return true
}

// End closes both inputs and waits for FFmpeg to flush the container.
func (e *FFmpegEncoder) End() error {
	if e.cancel == nil {
		return errors.New("encoder not started")
	}
	if !e.closeInputs() {
		return errors.New("encoder already closed")
	}
	e.writers.Wait()
	readErr := <-e.readErr
	waitErr := e.cmd.Wait()
	e.cancel()

	if waitErr != nil {
		if msg := strings.TrimSpace(e.stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w\nstderr: %s", waitErr, msg)
		}
		return fmt.Errorf("ffmpeg: %w", waitErr)
	}
	if readErr != nil {
		return fmt.Errorf("read ffmpeg output: %w", readErr)
	}
	return nil
}

// Kill stops FFmpeg without waiting for output.
func (e *FFmpegEncoder) Kill() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	if e.closeInputs() {
		go func() {
			e.writers.Wait()
			<-e.readErr
			e.cmd.Wait()
		}()
	}
}
