package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/satindergrewal/slidestream/internal/capture"
	"github.com/satindergrewal/slidestream/internal/render"
)

// Config holds all runtime configuration: defaults, then an optional YAML
// file, then SLIDESTREAM_* environment variables.
type Config struct {
	Export  ExportConfig  `yaml:"export"`
	Paths   PathsConfig   `yaml:"paths"`
	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Ollama  OllamaConfig  `yaml:"ollama"`
	Logging LoggingConfig `yaml:"logging"`
}

type ExportConfig struct {
	AspectRatio      string `yaml:"aspect_ratio"`
	Scale            int    `yaml:"scale"`
	Format           string `yaml:"format"`
	Realtime         bool   `yaml:"realtime"`
	DwellMS          int    `yaml:"dwell_ms"`
	RequireNarration bool   `yaml:"require_narration"`
}

// Dwell is the hold time of slides without narration.
func (e ExportConfig) Dwell() time.Duration {
	return time.Duration(e.DwellMS) * time.Millisecond
}

type PathsConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Temp   string `yaml:"temp"`
}

type FFmpegConfig struct {
	Binary   string `yaml:"binary"`
	Pdftoppm string `yaml:"pdftoppm"`
	PDFDPI   int    `yaml:"pdf_dpi"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr is host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

type GeminiConfig struct {
	APIKey      string `yaml:"api_key"`
	ScriptModel string `yaml:"script_model"`
	SpeechModel string `yaml:"speech_model"`
	Voice       string `yaml:"voice"`
}

type OllamaConfig struct {
	URL         string  `yaml:"url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Export: ExportConfig{
			AspectRatio: string(render.Landscape),
			Scale:       1,
			Format:      string(capture.WebM),
			DwellMS:     3000,
		},
		Paths: PathsConfig{
			Input:  "data/input",
			Output: "data/output",
			Temp:   os.TempDir(),
		},
		FFmpeg: FFmpegConfig{
			Binary:   "ffmpeg",
			Pdftoppm: "pdftoppm",
			PDFDPI:   150,
		},
		Server: ServerConfig{Host: "127.0.0.1", Port: 8080},
		Watch:  WatchConfig{DebounceMS: 2000},
		Gemini: GeminiConfig{
			ScriptModel: "gemini-2.5-flash",
			SpeechModel: "gemini-2.5-flash-preview-tts",
			Voice:       "Kore",
		},
		Ollama: OllamaConfig{
			URL:         "http://localhost:11434",
			Temperature: 0.7,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path (when non-empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Export.AspectRatio = envStr("SLIDESTREAM_ASPECT_RATIO", c.Export.AspectRatio)
	c.Export.Scale = envInt("SLIDESTREAM_SCALE", c.Export.Scale)
	c.Export.Format = envStr("SLIDESTREAM_FORMAT", c.Export.Format)
	c.Export.Realtime = envBool("SLIDESTREAM_REALTIME", c.Export.Realtime)
	c.Export.DwellMS = envInt("SLIDESTREAM_DWELL_MS", c.Export.DwellMS)
	c.Export.RequireNarration = envBool("SLIDESTREAM_REQUIRE_NARRATION", c.Export.RequireNarration)

	c.Paths.Input = envStr("SLIDESTREAM_INPUT_DIR", c.Paths.Input)
	c.Paths.Output = envStr("SLIDESTREAM_OUTPUT_DIR", c.Paths.Output)
	c.Paths.Temp = envStr("SLIDESTREAM_TEMP_DIR", c.Paths.Temp)

	c.FFmpeg.Binary = envStr("SLIDESTREAM_FFMPEG", c.FFmpeg.Binary)
	c.FFmpeg.Pdftoppm = envStr("SLIDESTREAM_PDFTOPPM", c.FFmpeg.Pdftoppm)
	c.FFmpeg.PDFDPI = envInt("SLIDESTREAM_PDF_DPI", c.FFmpeg.PDFDPI)

	c.Server.Host = envStr("SLIDESTREAM_HOST", c.Server.Host)
	c.Server.Port = envInt("SLIDESTREAM_PORT", c.Server.Port)

	c.Watch.DebounceMS = envInt("SLIDESTREAM_WATCH_DEBOUNCE_MS", c.Watch.DebounceMS)

	c.Gemini.APIKey = envStr("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.APIKey = envStr("SLIDESTREAM_GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.ScriptModel = envStr("SLIDESTREAM_GEMINI_SCRIPT_MODEL", c.Gemini.ScriptModel)
	c.Gemini.SpeechModel = envStr("SLIDESTREAM_GEMINI_SPEECH_MODEL", c.Gemini.SpeechModel)
	c.Gemini.Voice = envStr("SLIDESTREAM_GEMINI_VOICE", c.Gemini.Voice)

	c.Ollama.URL = envStr("SLIDESTREAM_OLLAMA_URL", c.Ollama.URL)
	c.Ollama.Model = envStr("SLIDESTREAM_OLLAMA_MODEL", c.Ollama.Model)
	c.Ollama.Temperature = envFloat("SLIDESTREAM_OLLAMA_TEMPERATURE", c.Ollama.Temperature)

	c.Logging.Level = envStr("SLIDESTREAM_LOG_LEVEL", c.Logging.Level)
}

// Validate normalises values and fills defaults for anything left empty.
func (c *Config) Validate() error {
	ratio, err := render.ParseAspectRatio(c.Export.AspectRatio)
	if err != nil {
		return fmt.Errorf("export.aspect_ratio: %w", err)
	}
	c.Export.AspectRatio = string(ratio)

	if c.Export.Scale == 0 {
		c.Export.Scale = render.MinScale
	}
	if c.Export.Scale < render.MinScale || c.Export.Scale > render.MaxScale {
		return fmt.Errorf("export.scale: %w: %d", render.ErrScale, c.Export.Scale)
	}

	format, err := capture.ParseFormat(c.Export.Format)
	if err != nil {
		return fmt.Errorf("export.format: %w", err)
	}
	c.Export.Format = string(format)

	if c.Export.DwellMS <= 0 {
		c.Export.DwellMS = 3000
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Paths.Input == "" {
		return errors.New("paths.input is required")
	}
	if c.Paths.Output == "" {
		return errors.New("paths.output is required")
	}
	if c.Paths.Temp == "" {
		c.Paths.Temp = os.TempDir()
	}
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = "ffmpeg"
	}
	if c.FFmpeg.Pdftoppm == "" {
		c.FFmpeg.Pdftoppm = "pdftoppm"
	}
	if c.FFmpeg.PDFDPI <= 0 {
		c.FFmpeg.PDFDPI = 150
	}
	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = 2000
	}
	if c.Gemini.ScriptModel == "" {
		c.Gemini.ScriptModel = "gemini-2.5-flash"
	}
	if c.Gemini.SpeechModel == "" {
		c.Gemini.SpeechModel = "gemini-2.5-flash-preview-tts"
	}
	if c.Gemini.Voice == "" {
		c.Gemini.Voice = "Kore"
	}
	c.Ollama.URL = strings.TrimRight(c.Ollama.URL, "/")
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		c.Logging.Level = strings.ToLower(c.Logging.Level)
	case "":
		c.Logging.Level = "info"
	default:
		return fmt.Errorf("logging.level must be debug|info|warn|error, got %q", c.Logging.Level)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
