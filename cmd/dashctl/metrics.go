package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agrivoltaic-dashboard/internal/services"
)

// Metrics-specific flag values.
var (
	metricsAt    int
	metricsStart string
	metricsEnd   string
)

// metricsCmd prints the latest open field, agrivoltaic and difference values.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print the latest values of each site and their difference",
	Long: `Print irradiance and temperature for the last row of a view, for both sites,
with the open field minus agrivoltaic difference.

With --at the view is rows 0..N, as playback would show it at cursor N.
With --start/--end the view is the date range, clamped to the data.
Without either the view is the whole dataset.`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

func init() {
	metricsCmd.Flags().IntVar(&metricsAt, "at", -1, "playback cursor (row index) to report at")
	metricsCmd.Flags().StringVar(&metricsStart, "start", "", "first day of the range (YYYY-MM-DD)")
	metricsCmd.Flags().StringVar(&metricsEnd, "end", "", "last day of the range (YYYY-MM-DD)")
	metricsCmd.MarkFlagsMutuallyExclusive("at", "start")
	metricsCmd.MarkFlagsMutuallyExclusive("at", "end")
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	start, err := parseDateFlag("start", metricsStart)
	if err != nil {
		return err
	}
	end, err := parseDateFlag("end", metricsEnd)
	if err != nil {
		return err
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	ds, err := e.load(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	view := ds
	switch {
	case cmd.Flags().Changed("at"):
		if metricsAt < 0 || metricsAt >= ds.Len() {
			return fmt.Errorf("dashctl: --at %d is outside rows 0..%d", metricsAt, ds.Len()-1)
		}
		view = services.VisibleDataset(ds, metricsAt)
		last, _ := view.OpenField.Last()
		_, _ = fmt.Fprintf(w, "Row %d of %d at %s\n", metricsAt+1, ds.Len(), last.Time.Format("2006-01-02 15:04:05"))

	case start != nil || end != nil:
		sel := services.SelectRange(ds, services.FilterRequest{StartDate: start, EndDate: end})
		if !sel.InBounds {
			_, _ = fmt.Fprintf(w, "No data in %s (data covers %s)\n", sel.Requested, sel.Bounds)
			return nil
		}
		view = sel.View
		_, _ = fmt.Fprintf(w, "%d rows in %s\n", view.Len(), sel.Effective)
	}

	list, err := services.ComputeMetrics(view)
	if err != nil {
		return fmt.Errorf("dashctl: %w", err)
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "No data in range")
		return nil
	}
	return writeMetrics(w, list)
}
