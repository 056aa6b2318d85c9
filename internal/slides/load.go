package slides

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/satindergrewal/slidestream/internal/audio"
	"github.com/satindergrewal/slidestream/internal/executor"
	"github.com/satindergrewal/slidestream/internal/logger"
)

// ManifestName is the optional deck description inside a deck directory.
const ManifestName = "deck.yaml"

// Manifest describes a deck explicitly. Paths are relative to the deck directory.
type Manifest struct {
	Title  string          `yaml:"title,omitempty"`
	Slides []ManifestSlide `yaml:"slides"`
}

// ManifestSlide is one entry of a Manifest. A missing index means the entry's position.
type ManifestSlide struct {
	Index     *int   `yaml:"index,omitempty"`
	Image     string `yaml:"image"`
	Text      string `yaml:"text,omitempty"`
	Script    string `yaml:"script,omitempty"`
	Narration string `yaml:"narration,omitempty"`
}

// LoaderConfig names the external tools used during ingestion.
type LoaderConfig struct {
	FFmpeg   string
	Pdftoppm string
	PDFDPI   int
	TempDir  string
}

// Loader builds a Store from a deck directory.
type Loader struct {
	cfg    LoaderConfig
	exec   executor.Executor
	logger logger.Logger
}

// NewLoader creates a Loader.
func NewLoader(cfg LoaderConfig, exec executor.Executor, log logger.Logger) *Loader {
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.PDFDPI == 0 {
		cfg.PDFDPI = 150
	}
	return &Loader{cfg: cfg, exec: exec, logger: log}
}

var (
	imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}
	audioExts = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg", ".opus"}
)

// Load reads dir. With a deck.yaml the manifest decides everything; without
// one, images and PDF pages are taken in natural filename order and
// narration is matched by basename (slide-1.png pairs with slide-1.wav and
// slide-1.txt).
func (l *Loader) Load(ctx context.Context, dir string) (*Store, error) {
	manifestPath := filepath.Join(dir, ManifestName)
	if _, err := os.Stat(manifestPath); err == nil {
		m, err := ReadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		return l.loadManifest(ctx, dir, m)
	}
	return l.loadDir(ctx, dir)
}

// ReadManifest parses a deck.yaml file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// WriteManifest writes m as YAML to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (l *Loader) loadManifest(ctx context.Context, dir string, m *Manifest) (*Store, error) {
	store := NewStore()
	for pos, entry := range m.Slides {
		idx := pos
		if entry.Index != nil {
			idx = *entry.Index
		}
		if entry.Image == "" {
			return nil, fmt.Errorf("manifest slide %d: image is required", idx)
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Image))
		if err != nil {
			return nil, fmt.Errorf("manifest slide %d: %w", idx, err)
		}
		if err := store.AddSlide(&Slide{Index: idx, Image: NewImage(entry.Image, raw), SourceText: entry.Text}); err != nil {
			return nil, err
		}

		seg := &NarrationSegment{SlideIndex: idx, Script: entry.Script}
		if entry.Narration != "" {
			seg.Audio = l.decodeNarration(ctx, filepath.Join(dir, entry.Narration))
			seg.AudioPath = entry.Narration
		}
		if seg.Script != "" || seg.Audio != nil {
			if err := store.SetNarration(seg); err != nil {
				return nil, err
			}
		}
	}
	l.logger.Info(ctx, "Loaded deck %s from manifest: %d slides, %d narrated", dir, store.Len(), store.NarratedCount())
	return store, nil
}

// deckItem is one slide found while scanning a directory.
type deckItem struct {
	key  string // basename used to match narration and script files
	path string
	page *Page // set for rasterized PDF pages, already in memory
}

func (l *Loader) loadDir(ctx context.Context, dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read deck dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return NaturalLess(names[i], names[j]) })

	var items []deckItem
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		base := strings.TrimSuffix(name, filepath.Ext(name))
		switch {
		case hasExt(imageExts, ext):
			items = append(items, deckItem{key: base, path: filepath.Join(dir, name)})
		case ext == ".pdf":
			pages, err := l.RasterizePDF(ctx, filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			for p := range pages {
				items = append(items, deckItem{key: fmt.Sprintf("%s-%d", base, p+1), page: &pages[p]})
			}
		}
	}

	store := NewStore()
	for idx, it := range items {
		var img *Image
		if it.page != nil {
			img = NewImage(it.page.Name, it.page.Raw)
		} else {
			raw, err := os.ReadFile(it.path)
			if err != nil {
				return nil, fmt.Errorf("read slide %s: %w", it.path, err)
			}
			img = NewImage(filepath.Base(it.path), raw)
		}
		if err := store.AddSlide(&Slide{Index: idx, Image: img}); err != nil {
			return nil, err
		}

		seg := &NarrationSegment{SlideIndex: idx}
		if script, err := os.ReadFile(filepath.Join(dir, it.key+".txt")); err == nil {
			seg.Script = strings.TrimSpace(string(script))
		}
		for _, ext := range audioExts {
			p := filepath.Join(dir, it.key+ext)
			if _, err := os.Stat(p); err == nil {
				seg.Audio = l.decodeNarration(ctx, p)
				seg.AudioPath = it.key + ext
				break
			}
		}
		if seg.Script != "" || seg.Audio != nil {
			if err := store.SetNarration(seg); err != nil {
				return nil, err
			}
		}
	}
	l.logger.Info(ctx, "Loaded deck %s: %d slides, %d narrated", dir, store.Len(), store.NarratedCount())
	return store, nil
}

// decodeNarration returns nil when the file cannot be decoded; the slide then
// falls back to the dwell time.
func (l *Loader) decodeNarration(ctx context.Context, path string) *audio.Buffer {
	buf, err := audio.DecodeFile(ctx, l.cfg.FFmpeg, path)
	if err != nil {
		l.logger.Warn(ctx, "Narration %s unusable, slide will dwell: %v", path, err)
		return nil
	}
	return buf
}

// Page is one rasterized PDF page held in memory.
type Page struct {
	Name string
	Raw  []byte
}

// RasterizePDF renders every page of a PDF to PNG with pdftoppm and returns
// the pages in order. The scratch directory is removed before it returns.
func (l *Loader) RasterizePDF(ctx context.Context, pdfPath string) ([]Page, error) {
	outDir, err := os.MkdirTemp(l.cfg.TempDir, "slidestream-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("create pdf temp dir: %w", err)
	}
	defer l.cleanupTempDir(ctx, outDir)

	prefix := filepath.Join(outDir, "page")
	args := []string{"-png", "-r", strconv.Itoa(l.cfg.PDFDPI), pdfPath, prefix}
	if _, err := l.exec.Execute(ctx, l.cfg.Pdftoppm, args...); err != nil {
		return nil, fmt.Errorf("rasterize %s: %w", pdfPath, err)
	}
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.New("rasterize " + pdfPath + ": no pages produced")
	}
	sort.Slice(matches, func(i, j int) bool { return NaturalLess(matches[i], matches[j]) })

	pages := make([]Page, 0, len(matches))
	for _, m := range matches {
		raw, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("read page %s: %w", m, err)
		}
		pages = append(pages, Page{Name: filepath.Base(m), Raw: raw})
	}
	l.logger.Debug(ctx, "Rasterized %s into %d pages", pdfPath, len(pages))
	return pages, nil
}

// cleanupTempDir removes a scratch directory, logs warning if it fails.
func (l *Loader) cleanupTempDir(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		l.logger.Warn(ctx, "Failed to cleanup temp dir %s: %v", dir, err)
	} else {
		l.logger.Debug(ctx, "Cleaned up temp dir: %s", dir)
	}
}

func hasExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

var reNum = regexp.MustCompile(`\d+`)

// NaturalLess orders names with embedded numbers numerically ("2" before "10").
func NaturalLess(a, b string) bool {
	aa := reNum.FindAllStringIndex(a, -1)
	bb := reNum.FindAllStringIndex(b, -1)
	pa, pb := 0, 0
	for i := 0; i < len(aa) && i < len(bb); i++ {
		if a[pa:aa[i][0]] != b[pb:bb[i][0]] {
			return a[pa:aa[i][0]] < b[pb:bb[i][0]]
		}
		na, _ := strconv.Atoi(a[aa[i][0]:aa[i][1]])
		nb, _ := strconv.Atoi(b[bb[i][0]:bb[i][1]])
		if na != nb {
			return na < nb
		}
		pa, pb = aa[i][1], bb[i][1]
	}
	return a < b
}
