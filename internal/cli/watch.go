package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/slidestream/internal/export"
	"github.com/satindergrewal/slidestream/internal/progress"
	"github.com/satindergrewal/slidestream/internal/watcher"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Export every deck dropped into the input directory",
		Long: `Watch the input directory. Once a new deck directory has stopped changing
for the debounce period it is exported into the output directory. Decks are
exported one at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootOpts)
		},
	}
	return cmd
}

func runWatch(cmd *cobra.Command, opts *RootOptions) error {
	cfg, log := opts.Config, opts.Logger

	exportOpts, err := exportOptions(cfg.Export)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Paths.Input, 0o755); err != nil {
		return fmt.Errorf("create input dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := newLoader(cfg, log)
	manager := newManager(cfg, progress.NewLogReporter(log), nil, log)

	handler := func(ctx context.Context, deckDir string) error {
		store, err := loader.Load(ctx, deckDir)
		if err != nil {
			return fmt.Errorf("load deck: %w", err)
		}
		path, err := exportDeck(ctx, manager, store, exportOpts, cfg.Paths.Output)
		if err != nil {
			return errors.New(export.UserMessage(err))
		}
		if path != "" {
			log.Info(ctx, "Exported %s -> %s", deckDir, path)
		}
		return nil
	}

	debounce := time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
	w, err := watcher.New(cfg.Paths.Input, handler, log, debounce)
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
