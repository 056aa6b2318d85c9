package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/satindergrewal/slidestream/internal/audio"
)

type fakeEncoder struct {
	mu        sync.Mutex
	sink      func([]byte)
	video     int
	audio     int
	ended     bool
	killed    bool
	beginErr  error
	writeErr  error
	emitOnEnd bool
}

func (f *fakeEncoder) Begin(_ context.Context, _ Params, sink func([]byte)) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	f.sink = sink
	sink([]byte("header"))
	return nil
}

func (f *fakeEncoder) WriteVideo([]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.video++
	return nil
}

func (f *fakeEncoder) WriteAudio([]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.audio++
	return nil
}

func (f *fakeEncoder) End() error {
	f.mu.Lock()
	f.ended = true
	f.mu.Unlock()
	if f.emitOnEnd {
		f.sink([]byte("trailer"))
	}
	return nil
}

func (f *fakeEncoder) Kill() {
	f.mu.Lock()
	f.killed = true
	f.mu.Unlock()
}

type blankSurface struct{}

func (blankSurface) Snapshot(dst []byte) []byte { return append(dst[:0], 0, 0, 0, 0) }

func testParams() Params {
	return Params{Width: 1, Height: 1, FPS: FPS, VideoBitrate: BaseBitrate, SampleRate: audio.SampleRate, Channels: audio.Channels, Format: WebM}
}

func tone(d time.Duration) *audio.Buffer {
	return &audio.Buffer{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
		Samples:    make([]int16, audio.FramesFor(d)*audio.Channels),
	}
}

func TestTargetBitrate(t *testing.T) {
	tests := []struct {
		scale int
		want  int
	}{
		{1, 8_000_000},
		{2, 32_000_000},
		{3, 72_000_000},
		{4, MaxBitrate},
		{0, 8_000_000},
	}
	for _, tt := range tests {
		if got := TargetBitrate(tt.scale); got != tt.want {
			t.Errorf("TargetBitrate(%d) = %d, want %d", tt.scale, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" MP4 "); err != nil || f != MP4 {
		t.Errorf("ParseFormat(MP4) = %q, %v", f, err)
	}
	if _, err := ParseFormat("avi"); err == nil {
		t.Error("ParseFormat(avi) should fail")
	}
	if WebM.MIMEType() != "video/webm" || MP4.Ext() != "mp4" {
		t.Error("unexpected format metadata")
	}
}

func TestArgsSelectCodecs(t *testing.T) {
	p := testParams()
	p.Width, p.Height = 1280, 720
	webm := strings.Join(Args(p), " ")
	for _, want := range []string{"-s 1280x720", "-r 30", "-i pipe:3", "-c:v libvpx", "-c:a libopus", "-f webm", "-b:v 8000000"} {
		if !strings.Contains(webm, want) {
			t.Errorf("webm args missing %q: %s", want, webm)
		}
	}
	p.Format = MP4
	mp4 := strings.Join(Args(p), " ")
	for _, want := range []string{"-c:v libx264", "-c:a aac", "frag_keyframe", "-f mp4"} {
		if !strings.Contains(mp4, want) {
			t.Errorf("mp4 args missing %q: %s", want, mp4)
		}
	}
}

func TestRecorderCapturesAtMediaClock(t *testing.T) {
	bus := audio.NewBus()
	enc := &fakeEncoder{emitOnEnd: true}
	rec := NewRecorder(enc, blankSurface{}, bus, NewOfflinePacer(), testParams())

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pb, err := audio.NewRouter(bus, false).Play(tone(2 * time.Second))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	select {
	case <-pb.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("playback never completed")
	}

	d := <-rec.Stop()
	if d.Err != nil {
		t.Fatalf("delivery error: %v", d.Err)
	}
	if d.AudioFrames != 100 {
		t.Errorf("AudioFrames = %d, want 100", d.AudioFrames)
	}
	if d.VideoFrames != 60 {
		t.Errorf("VideoFrames = %d, want 60", d.VideoFrames)
	}
	if d.Duration != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", d.Duration)
	}
	if len(d.Chunks) != 2 || string(d.Chunks[0]) != "header" || string(d.Chunks[1]) != "trailer" {
		t.Errorf("chunks = %q, want header then trailer", d.Chunks)
	}
	if !enc.ended {
		t.Error("encoder was not ended")
	}
}

func TestRecorderOfflineIdlesWithoutPendingWork(t *testing.T) {
	bus := audio.NewBus()
	enc := &fakeEncoder{}
	rec := NewRecorder(enc, blankSurface{}, bus, NewOfflinePacer(), testParams())
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	d := <-rec.Stop()
	if d.AudioFrames != 0 || d.VideoFrames != 0 {
		t.Errorf("idle capture pulled %d audio / %d video frames", d.AudioFrames, d.VideoFrames)
	}
	// Only the header was written.
	if d.Err != nil {
		t.Errorf("unexpected error: %v", d.Err)
	}
}

func TestRecorderDwellTimer(t *testing.T) {
	bus := audio.NewBus()
	rec := NewRecorder(&fakeEncoder{}, blankSurface{}, bus, NewOfflinePacer(), testParams())
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-bus.After(3 * time.Second)
	d := <-rec.Stop()
	if d.Duration != 3*time.Second || d.VideoFrames != 90 {
		t.Errorf("dwell capture = %v / %d frames, want 3s / 90", d.Duration, d.VideoFrames)
	}
}

func TestRecorderStartFailure(t *testing.T) {
	boom := errors.New("no encoder")
	rec := NewRecorder(&fakeEncoder{beginErr: boom}, blankSurface{}, audio.NewBus(), NewOfflinePacer(), testParams())
	if err := rec.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start error = %v, want %v", err, boom)
	}
	d := <-rec.Stop()
	if !errors.Is(d.Err, ErrEmptyOutput) {
		t.Errorf("delivery error = %v, want ErrEmptyOutput", d.Err)
	}
}

func TestRecorderRejectsBadParams(t *testing.T) {
	p := testParams()
	p.FPS = 0
	rec := NewRecorder(&fakeEncoder{}, blankSurface{}, audio.NewBus(), NewOfflinePacer(), p)
	if err := rec.Start(context.Background()); !errors.Is(err, ErrStart) {
		t.Errorf("Start error = %v, want ErrStart", err)
	}
}

func TestRecorderHaltsOnEncoderFailure(t *testing.T) {
	bus := audio.NewBus()
	enc := &fakeEncoder{writeErr: errors.New("pipe closed")}
	rec := NewRecorder(enc, blankSurface{}, bus, NewOfflinePacer(), testParams())
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	bus.After(time.Second)
	select {
	case <-rec.Halted():
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not halt")
	}
	if rec.Err() == nil {
		t.Error("Err should explain the halt")
	}
	if d := <-rec.Stop(); d.Err == nil {
		t.Error("delivery should carry the pump failure")
	}
}

func TestRecorderAbortDiscards(t *testing.T) {
	bus := audio.NewBus()
	enc := &fakeEncoder{}
	rec := NewRecorder(enc, blankSurface{}, bus, NewOfflinePacer(), testParams())
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	bus.After(time.Hour)
	rec.Abort()
	if !enc.killed {
		t.Error("Abort should kill the encoder")
	}
	if d := <-rec.Stop(); !errors.Is(d.Err, ErrAborted) {
		t.Errorf("delivery after abort = %v, want ErrAborted", d.Err)
	}
}

func TestRecorderMonitorTap(t *testing.T) {
	bus := audio.NewBus()
	mon := make(chan []int16, 200)
	rec := NewRecorder(&fakeEncoder{}, blankSurface{}, bus, NewOfflinePacer(), testParams(), WithMonitor(mon))
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-bus.After(100 * time.Millisecond)
	<-rec.Stop()
	if got := len(mon); got != 5 {
		t.Errorf("monitor frames = %d, want 5", got)
	}
}

func TestOfflinePacerStops(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	if NewOfflinePacer().Next(context.Background(), audio.NewBus(), stop) {
		t.Error("Next should return false after stop")
	}
}

func TestRealtimePacerTicks(t *testing.T) {
	p := NewRealtimePacer()
	defer p.Close()
	bus := audio.NewBus()
	bus.After(time.Second)
	start := time.Now()
	if !p.Next(context.Background(), bus, make(chan struct{})) {
		t.Fatal("Next returned false")
	}
	if elapsed := time.Since(start); elapsed < audio.FrameDuration/2 {
		t.Errorf("realtime pacer returned after %v", elapsed)
	}
}

func TestRealtimePacerWaitsForFirstWork(t *testing.T) {
	p := NewRealtimePacer()
	defer p.Close()
	bus := audio.NewBus()

	got := make(chan bool, 1)
	go func() { got <- p.Next(context.Background(), bus, make(chan struct{})) }()

	select {
	case <-got:
		t.Fatal("realtime pacer ticked before anything was pending")
	case <-time.After(5 * audio.FrameDuration):
	}

	bus.After(time.Second)
	select {
	case ok := <-got:
		if !ok {
			t.Error("Next returned false")
		}
	case <-time.After(time.Second):
		t.Fatal("realtime pacer did not start once work was pending")
	}
}

func TestRealtimePacerStopsWhileWaiting(t *testing.T) {
	p := NewRealtimePacer()
	defer p.Close()
	stop := make(chan struct{})
	close(stop)
	if p.Next(context.Background(), audio.NewBus(), stop) {
		t.Error("Next should return false after stop")
	}
}
