package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"agrivoltaic-dashboard/internal/events"
	"agrivoltaic-dashboard/internal/services"
	"agrivoltaic-dashboard/internal/session"
)

// Playback-specific flag values.
var (
	playbackSteps int
)

// playbackCmd steps a playback session and prints each row's metrics.
var playbackCmd = &cobra.Command{
	Use:   "playback",
	Short: "Step through the data one row at a time",
	Long: `Start a playback session at row 0 and advance it --steps times, printing the
metrics after every step. Stepping past the last row wraps to row 0 and prints
the completion notice once.`,
	Args: cobra.NoArgs,
	RunE: runPlayback,
}

func init() {
	playbackCmd.Flags().IntVarP(&playbackSteps, "steps", "n", 1, "number of rows to advance")
}

func runPlayback(cmd *cobra.Command, _ []string) error {
	if playbackSteps < 0 {
		return fmt.Errorf("dashctl: --steps must not be negative, got %d", playbackSteps)
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	playback := services.NewPlaybackService(e.datasets, session.NewMemoryStore(defaultSessionTTL), events.NoopPublisher{}, e.logger, e.metrics)

	view, err := playback.CreateSession(ctx, nil)
	if err != nil {
		return fmt.Errorf("dashctl: %w", err)
	}

	w := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	yellow := color.New(color.FgYellow)

	for step := 0; ; step++ {
		_, _ = fmt.Fprintf(w, "%s %s\n",
			bold.Sprintf("[%d/%d]", view.Cursor+1, view.TotalRows),
			view.CurrentTime.Format("2006-01-02 15:04:05"))
		if view.Notice != "" {
			_, _ = fmt.Fprintln(w, yellow.Sprint(view.Notice))
		}
		if err := writeMetrics(w, view.Metrics); err != nil {
			return err
		}
		if step == playbackSteps {
			break
		}

		if _, err := playback.Advance(ctx, view.SessionID); err != nil {
			return fmt.Errorf("dashctl: %w", err)
		}
		if view, err = playback.Render(ctx, view.SessionID, nil); err != nil {
			return fmt.Errorf("dashctl: %w", err)
		}
	}

	return playback.DeleteSession(ctx, view.SessionID)
}
