package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"agrivoltaic-dashboard/internal/config"
	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/internal/repository"
	"agrivoltaic-dashboard/internal/services"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

// defaultSessionTTL outlives any playback run.
const defaultSessionTTL = time.Hour

// Global flag values.
var (
	openFieldPath   string
	agrivoltaicPath string
	verbose         bool
	noColor         bool
)

// rootCmd is the base command for dashctl.
var rootCmd = &cobra.Command{
	Use:   "dashctl",
	Short: "Compare open field and agrivoltaic observations from the terminal",
	Long: `dashctl reads the open field and agrivoltaic CSV exports directly and
prints the same metrics, playback steps and CSV reports the dashboard API serves.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&openFieldPath, "open-field", "", "open field CSV (default from OPEN_FIELD_CSV or the sites file)")
	rootCmd.PersistentFlags().StringVar(&agrivoltaicPath, "agrivoltaic", "", "agrivoltaic CSV (default from AGRIVOLTAIC_CSV or the sites file)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log loader activity to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(playbackCmd)
	rootCmd.AddCommand(versionCmd)
}

// env is the service stack a command runs against
type env struct {
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
	datasets *services.DatasetService
}

// newEnv resolves site specs from the environment and flags and wires a
// CSV-backed dataset service. Logs go to the command's stderr.
func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("dashctl: %w", err)
	}
	specs := cfg.Data.Sites
	overrideSitePath(specs, models.SiteOpenField, openFieldPath)
	overrideSitePath(specs, models.SiteAgrivoltaic, agrivoltaicPath)

	level := logging.WarnLevel
	if verbose {
		level = logging.DebugLevel
	}
	logger := logging.NewStructuredLogger("dashctl", Version, level)
	logger.SetOutput(cmd.ErrOrStderr())

	m := metrics.NewCollector("dashctl", prometheus.NewRegistry())

	return &env{
		logger:   logger,
		metrics:  m,
		datasets: services.NewDatasetService(repository.NewCSVRepository(logger, m), specs, logger, m),
	}, nil
}

func overrideSitePath(specs map[models.Site]models.SiteSpec, site models.Site, path string) {
	if path == "" {
		return
	}
	spec := specs[site]
	spec.Site = site
	spec.Path = path
	specs[site] = spec
}

// load reads both tables, reporting the failure in one line
func (e *env) load(ctx context.Context) (*models.Dataset, error) {
	ds, err := e.datasets.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashctl: cannot load observations: %w", err)
	}
	return ds, nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag value
func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := models.ParseDate(name, value)
	if err != nil {
		return nil, fmt.Errorf("dashctl: --%s: %w", name, err)
	}
	return &d, nil
}

// writeMetrics prints one line per field. A positive difference (open field
// above agrivoltaic) is green, a negative one red.
func writeMetrics(w io.Writer, list []models.Metric) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	_, _ = fmt.Fprintln(tw, bold.Sprint("FIELD")+"\t"+bold.Sprint("OPEN FIELD")+"\t"+bold.Sprint("AGRIVOLTAIC")+"\t"+bold.Sprint("DIFFERENCE"))
	for _, m := range list {
		diff := m.DifferenceDisplay
		switch {
		case m.Difference == nil:
		case *m.Difference > 0:
			diff = green.Sprint(diff)
		case *m.Difference < 0:
			diff = red.Sprint(diff)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Label, m.OpenFieldDisplay, m.AgrivoltaicDisplay, diff)
	}
	return tw.Flush()
}
