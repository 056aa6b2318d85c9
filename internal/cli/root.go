package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/slidestream/internal/config"
	"github.com/satindergrewal/slidestream/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	// Set by PersistentPreRunE.
	Config config.Config
	Logger logger.Logger
}

// NewRootCommand creates the root command for the slidestream CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "slidestream",
		Short: "Turn slides and narration into one video",
		Long: `slidestream records a deck of slide images (or PDF pages) together with
per-slide narration audio into a single WebM or MP4 file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			level := cfg.Logging.Level
			if opts.Verbose {
				level = "debug"
			}
			opts.Config = cfg
			// stdout is reserved for command output.
			opts.Logger = logger.NewWithWriter(cmd.ErrOrStderr(), level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewNarrateCommand(opts))

	return cmd
}
