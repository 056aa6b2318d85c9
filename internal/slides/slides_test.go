package slides

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/slidestream/internal/audio"
	"github.com/satindergrewal/slidestream/internal/executor"
	"github.com/satindergrewal/slidestream/internal/logger"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSlidesSortedByIndex(t *testing.T) {
	store := NewStore()
	for _, idx := range []int{7, 0, 3} {
		require.NoError(t, store.AddSlide(&Slide{Index: idx, Image: NewImage("x", nil)}))
	}
	var got []int
	for _, sl := range store.Slides() {
		got = append(got, sl.Index)
	}
	assert.Equal(t, []int{0, 3, 7}, got)
	assert.Equal(t, 3, store.Len())
}

func TestAddSlideRejectsDuplicateAndNegative(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.AddSlide(&Slide{Index: 1, Image: NewImage("a", nil)}))
	assert.ErrorIs(t, store.AddSlide(&Slide{Index: 1, Image: NewImage("b", nil)}), ErrDuplicateIndex)
	assert.ErrorIs(t, store.AddSlide(&Slide{Index: -1, Image: NewImage("c", nil)}), ErrNegativeIndex)
	assert.Error(t, store.AddSlide(&Slide{Index: 2}))
}

func TestDecodedNarration(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.AddSlide(&Slide{Index: 0, Image: NewImage("a", nil)}))
	require.NoError(t, store.AddSlide(&Slide{Index: 1, Image: NewImage("b", nil)}))

	buf := &audio.Buffer{SampleRate: audio.SampleRate, Channels: audio.Channels, Samples: []int16{1, 1}}
	require.NoError(t, store.SetNarration(&NarrationSegment{SlideIndex: 0, Script: "hi", Audio: buf}))
	require.NoError(t, store.SetNarration(&NarrationSegment{SlideIndex: 1, Script: "script only"}))

	assert.Same(t, buf, store.DecodedNarration(0))
	assert.Nil(t, store.DecodedNarration(1))
	assert.Nil(t, store.DecodedNarration(2))
	assert.Equal(t, 1, store.NarratedCount())

	seg, ok := store.Narration(1)
	require.True(t, ok)
	assert.Equal(t, "script only", seg.Script)
}

func TestImageDecodeOnce(t *testing.T) {
	img := NewImage("slide.png", encodePNG(t, 4, 3))
	img.Prefetch()
	got, err := img.Decode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), got.Bounds())

	again, err := img.Decode(context.Background())
	require.NoError(t, err)
	assert.Same(t, got, again)
	assert.Equal(t, "image/png", img.MIMEType())
}

func TestImageDecodeError(t *testing.T) {
	_, err := NewImage("broken.png", []byte("definitely not a png")).Decode(context.Background())
	assert.ErrorIs(t, err, ErrDecode)

	_, err = NewImage("empty.png", nil).Decode(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDecodedImage(t *testing.T) {
	raster := image.NewRGBA(image.Rect(0, 0, 2, 2))
	got, err := NewDecodedImage("mem", raster).Decode(context.Background())
	require.NoError(t, err)
	assert.Same(t, raster, got)
}

func TestNaturalLess(t *testing.T) {
	assert.True(t, NaturalLess("slide2.png", "slide10.png"))
	assert.False(t, NaturalLess("slide10.png", "slide2.png"))
	assert.True(t, NaturalLess("a.png", "b.png"))
	assert.True(t, NaturalLess("page-09.png", "page-10.png"))
}

func newTestLoader() *Loader {
	return NewLoader(LoaderConfig{}, executor.New(), logger.Nop())
}

func TestLoadDirWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slide10.png"), encodePNG(t, 2, 2), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slide2.png"), encodePNG(t, 3, 3), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slide2.txt"), []byte(" Welcome \n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0644))

	store, err := newTestLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	got := store.Slides()
	require.Len(t, got, 2)
	assert.Equal(t, "slide2.png", got[0].Image.Name())
	assert.Equal(t, "slide10.png", got[1].Image.Name())

	seg, ok := store.Narration(0)
	require.True(t, ok)
	assert.Equal(t, "Welcome", seg.Script)
	assert.Nil(t, seg.Audio)
	_, ok = store.Narration(1)
	assert.False(t, ok)
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), encodePNG(t, 2, 2), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), encodePNG(t, 2, 2), 0644))

	five, zero := 5, 0
	require.NoError(t, WriteManifest(filepath.Join(dir, ManifestName), &Manifest{
		Title: "demo",
		Slides: []ManifestSlide{
			{Index: &five, Image: "b.png", Text: "second", Script: "later"},
			{Index: &zero, Image: "a.png", Text: "first"},
		},
	}))

	store, err := newTestLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	got := store.Slides()
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "first", got[0].SourceText)
	assert.Equal(t, 5, got[1].Index)

	seg, ok := store.Narration(5)
	require.True(t, ok)
	assert.Equal(t, "later", seg.Script)
}

func TestLoadManifestDuplicateIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), encodePNG(t, 2, 2), 0644))
	one := 1
	require.NoError(t, WriteManifest(filepath.Join(dir, ManifestName), &Manifest{
		Slides: []ManifestSlide{{Index: &one, Image: "a.png"}, {Index: &one, Image: "a.png"}},
	}))

	_, err := newTestLoader().Load(context.Background(), dir)
	assert.ErrorIs(t, err, ErrDuplicateIndex)
}

// pageWriter stands in for pdftoppm: it writes numbered PNG pages at the
// output prefix passed as the last argument.
type pageWriter struct {
	pages int
	png   []byte
}

func (p *pageWriter) Execute(_ context.Context, _ string, args ...string) (string, error) {
	prefix := args[len(args)-1]
	for i := 1; i <= p.pages; i++ {
		if err := os.WriteFile(prefix+"-"+strconv.Itoa(i)+".png", p.png, 0644); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (p *pageWriter) LookPath(name string) (string, error) { return name, nil }

func TestLoadPDFRemovesScratchPages(t *testing.T) {
	deckDir := t.TempDir()
	scratch := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(deckDir, "talk.pdf"), []byte("%PDF-1.4"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(deckDir, "talk-2.txt"), []byte("page two"), 0644))

	loader := NewLoader(LoaderConfig{TempDir: scratch}, &pageWriter{pages: 2, png: encodePNG(t, 4, 3)}, logger.Nop())
	for i := 0; i < 3; i++ {
		store, err := loader.Load(context.Background(), deckDir)
		require.NoError(t, err)

		got := store.Slides()
		require.Len(t, got, 2)
		assert.Equal(t, "page-1.png", got[0].Image.Name())
		img, err := got[1].Image.Decode(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 4, img.Bounds().Dx())

		seg, ok := store.Narration(1)
		require.True(t, ok)
		assert.Equal(t, "page two", seg.Script)
	}

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left, "rasterized pages must not outlive the load")
}

func TestLoadPDFFailureRemovesScratch(t *testing.T) {
	deckDir := t.TempDir()
	scratch := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(deckDir, "empty.pdf"), []byte("%PDF-1.4"), 0644))

	loader := NewLoader(LoaderConfig{TempDir: scratch}, &pageWriter{}, logger.Nop())
	_, err := loader.Load(context.Background(), deckDir)
	assert.ErrorContains(t, err, "no pages produced")

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSetNarrationRejectsNegativeIndex(t *testing.T) {
	store := NewStore()
	err := store.SetNarration(&NarrationSegment{SlideIndex: -1, Script: "x"})
	assert.ErrorIs(t, err, ErrNegativeIndex)
	assert.Zero(t, store.NarratedCount())
}
