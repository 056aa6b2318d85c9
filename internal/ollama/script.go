package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/satindergrewal/slidestream/internal/slides"
)

// ErrNoText is returned for slides that carry no text to narrate from.
var ErrNoText = errors.New("slide has no source text")

// ScriptWriter turns the text of a slide into a spoken narration script.
type ScriptWriter struct {
	client *Client
}

// NewScriptWriter creates a script writer backed by an Ollama client.
func NewScriptWriter(client *Client) *ScriptWriter {
	return &ScriptWriter{client: client}
}

const scriptSystemPrompt = `You write the voice-over for one slide of a presentation.

Given the text on the slide, output the narration a presenter would speak while the slide is shown.

Rules:
- 2 to 5 sentences, plain spoken English
- Explain the slide, do not read bullet points verbatim
- No greetings unless it is the first slide, no sign-off unless it is the last
- No markdown, no lists, no stage directions, no quotes around the text

Output ONLY the narration text.

/no_think`

// Script writes the narration for sl, the pos-th slide (zero-based) of total.
func (w *ScriptWriter) Script(ctx context.Context, sl *slides.Slide, pos, total int) (string, error) {
	text := strings.TrimSpace(sl.SourceText)
	if text == "" {
		return "", fmt.Errorf("slide %d: %w", sl.Index, ErrNoText)
	}
	prompt := fmt.Sprintf("Slide %d of %d.\nSlide text:\n%s", pos+1, total, text)

	raw, err := w.client.Generate(ctx, scriptSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("slide %d script: %w", sl.Index, err)
	}
	script := cleanScript(raw)
	if len(script) < 10 {
		return "", fmt.Errorf("slide %d: unusable script %q", sl.Index, raw)
	}
	return script, nil
}

// cleanScript strips common LLM artifacts from output.
func cleanScript(s string) string {
	s = strings.TrimSpace(s)

	// Strip thinking tags (Qwen 3 thinking mode leakage)
	if idx := strings.Index(s, "</think>"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("</think>"):])
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	prefixes := []string{
		"Here's the narration:",
		"Here is the narration:",
		"Narration:",
		"Voice-over:",
	}
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}

	// Collapse the line breaks models like to add.
	return strings.Join(strings.Fields(s), " ")
}
