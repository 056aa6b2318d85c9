package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/slidestream/internal/config"
	"github.com/satindergrewal/slidestream/internal/logger"
	"github.com/satindergrewal/slidestream/internal/narration"
	"github.com/satindergrewal/slidestream/internal/ollama"
)

// Script providers accepted by --scripts.
const (
	providerAuto   = "auto"
	providerGemini = "gemini"
	providerOllama = "ollama"
	providerNone   = "none"
)

type narrateFlags struct {
	scripts string
	speech  bool
}

// NewNarrateCommand creates the narrate command.
func NewNarrateCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &narrateFlags{}

	cmd := &cobra.Command{
		Use:   "narrate <deck-dir>",
		Short: "Write missing narration scripts and speech for a deck",
		Long: `Fill in what a deck is missing: a script for every slide without one
(Gemini or a local Ollama model) and a WAV file for every scripted slide
without audio (Gemini speech). The deck manifest is rewritten to reference
the results; slides that fail keep no audio and dwell on export.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNarrate(cmd, rootOpts, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.scripts, "scripts", providerAuto, "script writer (auto|gemini|ollama|none)")
	cmd.Flags().BoolVar(&flags.speech, "speech", true, "synthesize speech with Gemini")

	return cmd
}

func runNarrate(cmd *cobra.Command, opts *RootOptions, flags *narrateFlags, deckDir string) error {
	cfg, log := opts.Config, opts.Logger
	ctx := cmd.Context()

	var gemini *narration.Gemini
	if cfg.Gemini.APIKey != "" {
		g, err := narration.NewGemini(ctx, narration.GeminiConfig{
			APIKey:      cfg.Gemini.APIKey,
			ScriptModel: cfg.Gemini.ScriptModel,
			SpeechModel: cfg.Gemini.SpeechModel,
			Voice:       cfg.Gemini.Voice,
		}, log)
		if err != nil {
			return err
		}
		gemini = g
	}

	scripts, err := scriptWriter(ctx, flags.scripts, cfg.Ollama, gemini, log)
	if err != nil {
		return err
	}
	var speaker narration.Speaker
	switch {
	case !flags.speech:
	case gemini != nil:
		speaker = gemini
	default:
		log.Warn(ctx, "No Gemini API key configured, skipping speech synthesis")
	}
	if scripts == nil && speaker == nil {
		return errors.New("nothing to do: no script writer and no speech synthesizer available")
	}

	store, err := newLoader(cfg, log).Load(ctx, deckDir)
	if err != nil {
		return fmt.Errorf("load deck: %w", err)
	}

	stats, err := narration.NewGenerator(scripts, speaker, log).Generate(ctx, deckDir, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scripts: %d, audio: %d, failed: %d\n", stats.Scripts, stats.Audio, stats.Failed)
	return nil
}

// scriptWriter picks the script provider. auto prefers Gemini and falls
// back to Ollama when it answers.
func scriptWriter(ctx context.Context, provider string, oc config.OllamaConfig, gemini *narration.Gemini, log logger.Logger) (narration.ScriptWriter, error) {
	useOllama := func() (narration.ScriptWriter, bool) {
		if oc.URL == "" || oc.Model == "" {
			return nil, false
		}
		client := ollama.NewClient(oc.URL, oc.Model, oc.Temperature, log)
		readyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if !client.WaitForReady(readyCtx, 2*time.Second) {
			return nil, false
		}
		log.Info(ctx, "Ollama connected: %s", client.Model())
		return ollama.NewScriptWriter(client), true
	}

	switch provider {
	case providerNone:
		return nil, nil
	case providerGemini:
		if gemini == nil {
			return nil, errors.New("gemini scripts need an API key (gemini.api_key or GEMINI_API_KEY)")
		}
		return gemini, nil
	case providerOllama:
		w, ok := useOllama()
		if !ok {
			return nil, fmt.Errorf("ollama not available at %s (model %q)", oc.URL, oc.Model)
		}
		return w, nil
	case providerAuto:
		if gemini != nil {
			return gemini, nil
		}
		if w, ok := useOllama(); ok {
			return w, nil
		}
		log.Warn(ctx, "No script writer available, only existing scripts will be voiced")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown script provider %q", provider)
	}
}
