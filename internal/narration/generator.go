package narration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/satindergrewal/slidestream/internal/audio"
	"github.com/satindergrewal/slidestream/internal/logger"
	"github.com/satindergrewal/slidestream/internal/slides"
)

// NarrationDir holds generated WAV files inside a deck directory.
const NarrationDir = "narration"

// ScriptWriter produces the narration text of one slide.
type ScriptWriter interface {
	Script(ctx context.Context, sl *slides.Slide, pos, total int) (string, error)
}

// Speaker turns a script into audio.
type Speaker interface {
	Speak(ctx context.Context, script string) (*audio.Buffer, error)
}

// Stats counts what a Generate run produced.
type Stats struct {
	Scripts int
	Audio   int
	Failed  int
}

// Generator fills missing scripts and audio for a deck, then rewrites the
// deck manifest so the next load picks them up.
type Generator struct {
	scripts ScriptWriter
	speaker Speaker
	logger  logger.Logger
}

// NewGenerator creates a Generator. Either collaborator may be nil to skip that step.
func NewGenerator(scripts ScriptWriter, speaker Speaker, log logger.Logger) *Generator {
	return &Generator{scripts: scripts, speaker: speaker, logger: log}
}

// Generate works through the slides of store in order. A slide whose script
// or speech fails is logged and left without audio; it will dwell on export.
func (g *Generator) Generate(ctx context.Context, dir string, store *slides.Store) (Stats, error) {
	var stats Stats
	manifestPath := filepath.Join(dir, slides.ManifestName)
	manifest := &slides.Manifest{Title: filepath.Base(dir)}
	if existing, err := slides.ReadManifest(manifestPath); err == nil {
		manifest.Title = existing.Title
	}

	deck := store.Slides()
	for pos, sl := range deck {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		seg, ok := store.Narration(sl.Index)
		if !ok {
			seg = &slides.NarrationSegment{SlideIndex: sl.Index}
		}
		updated := *seg

		if updated.Script == "" && updated.Audio == nil && g.scripts != nil {
			script, err := g.scripts.Script(ctx, sl, pos, len(deck))
			if err != nil {
				g.logger.Warn(ctx, "[%d/%d] slide %d: no script: %v", pos+1, len(deck), sl.Index, err)
				stats.Failed++
			} else {
				updated.Script = script
				stats.Scripts++
			}
		}

		if updated.Audio == nil && updated.Script != "" && g.speaker != nil {
			buf, err := g.speaker.Speak(ctx, updated.Script)
			if err != nil {
				g.logger.Warn(ctx, "[%d/%d] slide %d: no speech: %v", pos+1, len(deck), sl.Index, err)
				stats.Failed++
			} else {
				rel := filepath.Join(NarrationDir, fmt.Sprintf("slide-%03d.wav", sl.Index))
				if err := writeWAV(filepath.Join(dir, rel), buf); err != nil {
					return stats, err
				}
				updated.Audio = buf
				updated.AudioPath = rel
				stats.Audio++
				g.logger.Info(ctx, "[%d/%d] slide %d: %v of narration -> %s", pos+1, len(deck), sl.Index, buf.Duration(), rel)
			}
		}

		if updated.Script != "" || updated.Audio != nil {
			if err := store.SetNarration(&updated); err != nil {
				return stats, err
			}
		}

		image, err := imagePath(dir, sl)
		if err != nil {
			return stats, err
		}
		idx := sl.Index
		manifest.Slides = append(manifest.Slides, slides.ManifestSlide{
			Index:     &idx,
			Image:     image,
			Text:      sl.SourceText,
			Script:    updated.Script,
			Narration: updated.AudioPath,
		})
	}

	if err := slides.WriteManifest(manifestPath, manifest); err != nil {
		return stats, err
	}
	g.logger.Info(ctx, "Narration for %s: %d scripts, %d audio files, %d failed", dir, stats.Scripts, stats.Audio, stats.Failed)
	return stats, nil
}

// imagePath returns the slide image relative to dir, copying images that
// live elsewhere (rasterized PDF pages) into the deck.
func imagePath(dir string, sl *slides.Slide) (string, error) {
	name := sl.Image.Name()
	if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
		return name, nil
	}
	rel := filepath.Join("pages", fmt.Sprintf("slide-%03d%s", sl.Index, filepath.Ext(name)))
	if err := os.MkdirAll(filepath.Join(dir, "pages"), 0755); err != nil {
		return "", fmt.Errorf("create pages dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, rel), sl.Image.Raw(), 0644); err != nil {
		return "", fmt.Errorf("copy slide %d image: %w", sl.Index, err)
	}
	return rel, nil
}

func writeWAV(path string, buf *audio.Buffer) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create narration dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := audio.WriteWAV(f, buf); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
