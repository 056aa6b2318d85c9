// Package narration fills a deck with narration: scripts from an LLM and
// speech from a TTS model, written next to the slides as WAV files.
package narration

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/satindergrewal/slidestream/internal/audio"
	"github.com/satindergrewal/slidestream/internal/logger"
	"github.com/satindergrewal/slidestream/internal/slides"
)

// speechRate is what Gemini TTS returns when the MIME type does not say.
const speechRate = 24000

// ErrEmptyResponse is returned when Gemini answers without usable content.
var ErrEmptyResponse = errors.New("empty response from Gemini")

// contentGenerator is the part of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig selects models and voice.
type GeminiConfig struct {
	APIKey      string
	ScriptModel string
	SpeechModel string
	Voice       string
}

// Gemini writes scripts from slide images and synthesizes speech.
type Gemini struct {
	models contentGenerator
	cfg    GeminiConfig
	logger logger.Logger
}

// NewGemini creates a Gemini client for the Gemini API backend.
func NewGemini(ctx context.Context, cfg GeminiConfig, log logger.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &Gemini{models: client.Models, cfg: cfg, logger: log}, nil
}

const scriptPrompt = `You write the voice-over for slide %d of %d of a presentation.
Look at the slide and write what a presenter would say while it is shown:
2 to 5 spoken sentences, no markdown, no stage directions, no greeting unless
this is the first slide. Output only the narration.`

// Script writes narration for sl from its image and any source text.
func (g *Gemini) Script(ctx context.Context, sl *slides.Slide, pos, total int) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(fmt.Sprintf(scriptPrompt, pos+1, total))}
	if raw := sl.Image.Raw(); len(raw) > 0 {
		parts = append(parts, genai.NewPartFromBytes(raw, sl.Image.MIMEType()))
	}
	if text := strings.TrimSpace(sl.SourceText); text != "" {
		parts = append(parts, genai.NewPartFromText("Slide text:\n"+text))
	}

	resp, err := g.models.GenerateContent(ctx, g.cfg.ScriptModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		return "", fmt.Errorf("slide %d script: %w", sl.Index, err)
	}
	script := strings.TrimSpace(resp.Text())
	if script == "" {
		return "", fmt.Errorf("slide %d script: %w", sl.Index, ErrEmptyResponse)
	}
	return script, nil
}

// Speak synthesizes script with the configured prebuilt voice.
func (g *Gemini) Speak(ctx context.Context, script string) (*audio.Buffer, error) {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.cfg.Voice},
			},
		},
	}
	resp, err := g.models.GenerateContent(ctx, g.cfg.SpeechModel, genai.Text(script), config)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		return &audio.Buffer{
			SampleRate: pcmRate(part.InlineData.MIMEType),
			Channels:   1,
			Samples:    audio.BytesToSamples(part.InlineData.Data),
		}, nil
	}
	return nil, ErrEmptyResponse
}

// pcmRate reads the rate parameter of an audio/L16 MIME type.
func pcmRate(mimeType string) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return speechRate
	}
	if r, err := strconv.Atoi(params["rate"]); err == nil && r > 0 {
		return r
	}
	return speechRate
}
