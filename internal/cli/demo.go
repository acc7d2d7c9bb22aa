package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lumenviz/chronicle"
	"github.com/lumenviz/chronicle/internal/config"
	"github.com/lumenviz/chronicle/internal/feed"
	"github.com/lumenviz/chronicle/internal/telemetry"
	"github.com/lumenviz/chronicle/internal/version"
)

var (
	demoRecord   bool
	demoDuration time.Duration
	demoTags     []string
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a synthetic layer feed, optionally recording it",
	Long: `Run an in-memory set of visualization layers driven by a randomized
live-update producer. With --record the session is captured and saved to the
record directory on exit, ready for 'chronicle replay'.

Examples:
  chronicle demo --record --duration 10s
  chronicle demo --tags grid,heat,route`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger := newLogger(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version.Version, cfg.OTELInsecure)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer shutdown(context.Background())

		layers := make(map[string]chronicle.Layer, len(demoTags))
		for _, tag := range demoTags {
			layers[tag] = newJSONLayer()
		}

		ctrl, err := chronicle.New(layers, chronicle.WithLogger(logger))
		if err != nil {
			return err
		}
		defer ctrl.Close()

		if demoRecord {
			if err := ctrl.StartRecord(); err != nil {
				return fmt.Errorf("start recording: %w", err)
			}
			color.Green("● recording")
		}

		producer := feed.New(logger, ctrl, demoTags, cfg.FeedInterval)

		runCtx := ctx
		if demoDuration > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, demoDuration)
			defer cancel()
		}

		g, gctx := errgroup.WithContext(runCtx)
		g.Go(func() error { return producer.Run(gctx) })
		if err := g.Wait(); err != nil {
			return err
		}

		result, err := ctrl.Terminate()
		if err != nil {
			return fmt.Errorf("terminate: %w", err)
		}
		if result.Stopped == chronicle.TerminatedRecording {
			color.Cyan("saved %s", result.Path)
		}
		return nil
	},
}

// DemoCmd returns the demo command.
func DemoCmd() *cobra.Command {
	demoCmd.Flags().BoolVar(&demoRecord, "record", false, "capture the session and save it on exit")
	demoCmd.Flags().DurationVar(&demoDuration, "duration", 0, "stop automatically after this long (0 runs until interrupted)")
	demoCmd.Flags().StringSliceVar(&demoTags, "tags", []string{"grid", "heat"}, "layer tags to drive")
	return demoCmd
}
