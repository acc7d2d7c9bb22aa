package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lumenviz/chronicle"
	"github.com/lumenviz/chronicle/internal/config"
	"github.com/lumenviz/chronicle/internal/store"
)

var (
	replayCadence time.Duration
	replayLoops   int
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay a saved record against in-memory layers",
	Long: `Load a record file, reconstruct a layer per tag found in its baseline,
and play the captured steps back at the configured cadence. Playback cycles
through the record; --loops bounds how many full passes to make.

Examples:
  chronicle replay records/260831-142500-12.rcd
  chronicle replay records/260831-142500-12.rcd --cadence 250ms --loops 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger := newLogger(cfg.LogLevel)

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}
		rec, err := store.Decode(raw)
		if err != nil {
			return fmt.Errorf("decode record: %w", err)
		}

		layers := make(map[string]chronicle.Layer)
		for _, u := range rec.Initial {
			layers[u.LayerTag] = newJSONLayer()
		}
		for _, step := range rec.Steps {
			for _, u := range step {
				if _, ok := layers[u.LayerTag]; !ok {
					layers[u.LayerTag] = newJSONLayer()
				}
			}
		}

		opts := []chronicle.Option{chronicle.WithLogger(logger), chronicle.WithCatalogPath("")}
		if replayCadence > 0 {
			opts = append(opts, chronicle.WithCadence(replayCadence))
		}
		ctrl, err := chronicle.New(layers, opts...)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := ctrl.StartReplay(ctx, rec); err != nil {
			return fmt.Errorf("start replay: %w", err)
		}
		color.Cyan("replaying %s: %d steps across %d layers", args[0], rec.StepCount(), len(layers))

		passes := 0
		lastIndex := -1
		for ctrl.Mode() == chronicle.ModeReplaying {
			select {
			case <-ctx.Done():
				color.Yellow("interrupted at step %s", progressString(ctrl))
				_, terr := ctrl.Terminate()
				return terr
			case <-time.After(50 * time.Millisecond):
			}

			index, _ := ctrl.Progress()
			if index < lastIndex {
				passes++
				if replayLoops > 0 && passes >= replayLoops {
					if _, err := ctrl.Terminate(); err != nil {
						return err
					}
					break
				}
			}
			lastIndex = index
		}

		if err := ctrl.ReplayErr(); err != nil {
			return fmt.Errorf("replay failed: %w", err)
		}
		color.Green("done (%d passes)", passes)
		return nil
	},
}

func progressString(ctrl *chronicle.Controller) string {
	index, total := ctrl.Progress()
	return fmt.Sprintf("%d/%d", index+1, total)
}

// ReplayCmd returns the replay command.
func ReplayCmd() *cobra.Command {
	replayCmd.Flags().DurationVar(&replayCadence, "cadence", 0, "delay between steps (default from CHRONICLE_REPLAY_CADENCE)")
	replayCmd.Flags().IntVar(&replayLoops, "loops", 1, "full passes to play before exiting (0 loops forever)")
	return replayCmd
}
