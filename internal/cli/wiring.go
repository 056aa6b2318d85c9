package cli

import (
	"github.com/satindergrewal/slidestream/internal/capture"
	"github.com/satindergrewal/slidestream/internal/config"
	"github.com/satindergrewal/slidestream/internal/executor"
	"github.com/satindergrewal/slidestream/internal/export"
	"github.com/satindergrewal/slidestream/internal/logger"
	"github.com/satindergrewal/slidestream/internal/progress"
	"github.com/satindergrewal/slidestream/internal/render"
	"github.com/satindergrewal/slidestream/internal/slides"
)

func newLoader(cfg config.Config, log logger.Logger) *slides.Loader {
	return slides.NewLoader(slides.LoaderConfig{
		FFmpeg:   cfg.FFmpeg.Binary,
		Pdftoppm: cfg.FFmpeg.Pdftoppm,
		PDFDPI:   cfg.FFmpeg.PDFDPI,
		TempDir:  cfg.Paths.Temp,
	}, executor.New(), log)
}

func newManager(cfg config.Config, reporter progress.Reporter, monitor chan<- []int16, log logger.Logger) *export.Manager {
	bin := cfg.FFmpeg.Binary
	return export.NewManager(export.Config{
		NewEncoder: func() capture.Encoder { return capture.NewFFmpegEncoder(bin) },
		Realtime:   cfg.Export.Realtime,
		Dwell:      cfg.Export.Dwell(),
		Monitor:    monitor,
		Reporter:   reporter,
		Logger:     log,
	})
}

// exportOptions turns the validated export section into session options.
func exportOptions(cfg config.ExportConfig) (export.Options, error) {
	ratio, err := render.ParseAspectRatio(cfg.AspectRatio)
	if err != nil {
		return export.Options{}, err
	}
	format, err := capture.ParseFormat(cfg.Format)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		AspectRatio:      ratio,
		Scale:            cfg.Scale,
		Format:           format,
		RequireNarration: cfg.RequireNarration,
	}, nil
}
