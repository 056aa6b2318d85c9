package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/slidestream/internal/api"
	"github.com/satindergrewal/slidestream/internal/progress"
	"github.com/satindergrewal/slidestream/internal/stream"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with live progress and narration monitoring",
		Long: `Serve the export API. Decks are named relative to the input directory.
Progress is pushed over /ws/progress; narration can be monitored live over
/monitor/stream (MP3) or WebRTC via /monitor/offer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				return runServe(cmd, rootOpts, addr)
			}
			return runServe(cmd, rootOpts, rootOpts.Config.Server.Addr())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.host/port)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *RootOptions, addr string) error {
	cfg, log := opts.Config, opts.Logger

	defaults, err := exportOptions(cfg.Export)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Progress: sessions report into the tracker, websocket clients read the fan-out.
	tracker := progress.NewTracker(256)
	events := stream.NewBroadcaster[progress.Event](32)
	go events.Run(ctx, tracker.Events())

	// Monitor: the capture tap copies mixed frames here while Options.Monitor is set.
	monitor := make(chan []int16, 150)
	pcm := stream.NewPCMBroadcaster()
	go pcm.Run(ctx, monitor)

	webrtcHandler := stream.NewWebRTCHandler(pcm, log)
	defer webrtcHandler.Close()

	manager := newManager(cfg, progress.Multi(tracker, progress.NewLogReporter(log)), monitor, log)
	server := api.NewServer(ctx, api.Deps{
		InputRoot: cfg.Paths.Input,
		OutputDir: cfg.Paths.Output,
		Defaults:  defaults,
		Loader:    newLoader(cfg, log),
		Manager:   manager,
		Tracker:   tracker,
		Progress:  stream.NewProgressHandler(events, tracker, nil, log),
		Monitor:   stream.NewHTTPHandler(pcm, cfg.FFmpeg.Binary, log),
		Offer:     webrtcHandler,
		Logger:    log,
		Listeners: func() map[string]int {
			return map[string]int{"total": pcm.ListenerCount(), "webrtc": webrtcHandler.PeerCount()}
		},
	})

	httpServer := &http.Server{Addr: addr, Handler: server.Routes()}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "slidestream listening on %s (decks from %s)", addr, cfg.Paths.Input)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "Shutting down...")
	manager.Cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
