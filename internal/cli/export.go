package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/slidestream/internal/export"
	"github.com/satindergrewal/slidestream/internal/progress"
)

type exportFlags struct {
	ratio            string
	scale            int
	format           string
	output           string
	realtime         bool
	requireNarration bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &exportFlags{}

	cmd := &cobra.Command{
		Use:   "export <deck-dir>",
		Short: "Record a deck into a video file",
		Long: `Record every slide of a deck directory in index order. Each slide stays on
screen while its narration plays, or for the dwell time when it has none.
Ctrl-C cancels the recording and discards the partial output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, rootOpts, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.ratio, "ratio", "", "aspect ratio (16:9, 9:16, 1:1, 4:3)")
	cmd.Flags().IntVar(&flags.scale, "scale", 0, "resolution multiplier (1-4)")
	cmd.Flags().StringVar(&flags.format, "format", "", "container (webm|mp4)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&flags.realtime, "realtime", false, "record at wall-clock speed")
	cmd.Flags().BoolVar(&flags.requireNarration, "require-narration", false, "refuse decks without any narration")

	return cmd
}

// apply overrides the config with every flag the user set.
func (f *exportFlags) apply(cmd *cobra.Command, opts *RootOptions) {
	set := cmd.Flags().Changed
	if set("ratio") {
		opts.Config.Export.AspectRatio = f.ratio
	}
	if set("scale") {
		opts.Config.Export.Scale = f.scale
	}
	if set("format") {
		opts.Config.Export.Format = f.format
	}
	if set("output") {
		opts.Config.Paths.Output = f.output
	}
	if set("realtime") {
		opts.Config.Export.Realtime = f.realtime
	}
	if set("require-narration") {
		opts.Config.Export.RequireNarration = f.requireNarration
	}
}

func runExport(cmd *cobra.Command, opts *RootOptions, flags *exportFlags, deckDir string) error {
	flags.apply(cmd, opts)
	cfg, log := opts.Config, opts.Logger

	exportOpts, err := exportOptions(cfg.Export)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newLoader(cfg, log).Load(ctx, deckDir)
	if err != nil {
		return fmt.Errorf("load deck: %w", err)
	}

	manager := newManager(cfg, progress.NewLogReporter(log), nil, log)
	path, err := exportDeck(ctx, manager, store, exportOpts, cfg.Paths.Output)
	if err != nil {
		return errors.New(export.UserMessage(err))
	}
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to export")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// exportDeck runs one export and writes it to outDir. An empty path with a
// nil error means the deck had no slides.
func exportDeck(ctx context.Context, m *export.Manager, src export.Source, opts export.Options, outDir string) (string, error) {
	res, err := m.Export(ctx, src, opts)
	if err != nil || res == nil {
		return "", err
	}
	return export.Save(outDir, res)
}
