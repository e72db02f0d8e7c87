package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/internal/repository"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

const openFieldCSV = `Time,GHI_Open_Field (W/m2),Temperature_Open_Field (C)
2024-06-01 06:00:00+00:00,100.5,20.1
2024-06-01 12:00:00+00:00,450.25,28.4
2024-06-02 06:00:00+00:00,120,19.9
2024-06-02 12:00:00+00:00,600.125,30.333
2024-06-03 12:00:00+00:00,700,31
`

const agrivoltaicCSV = `Time,GHI_Agrivoltaic (W/m2),Temperature_Agrivoltaic (C)
2024-06-01 06:00:00+00:00,60.25,18.0
2024-06-01 12:00:00+00:00,300.1,24.2
2024-06-02 06:00:00+00:00,80,18.5
2024-06-02 12:00:00+00:00,410.5,26.111
2024-06-03 12:00:00+00:00,500,
`

func testLogger() *logging.StructuredLogger {
	logger := logging.NewStructuredLogger("test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger
}

func testMetrics() *metrics.Collector {
	return metrics.NewCollector("test", prometheus.NewRegistry())
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

// writeSites writes both site files into a temp dir and returns specs
// pointing at them
func writeSites(t *testing.T, openField, agrivoltaic string) map[models.Site]models.SiteSpec {
	t.Helper()
	dir := t.TempDir()
	specs := models.DefaultSiteSpecs()

	for site, content := range map[models.Site]string{
		models.SiteOpenField:   openField,
		models.SiteAgrivoltaic: agrivoltaic,
	} {
		spec := specs[site]
		spec.Path = filepath.Join(dir, string(site)+".csv")
		if content != "" {
			require.NoError(t, os.WriteFile(spec.Path, []byte(content), 0o600))
		}
		specs[site] = spec
	}
	return specs
}

func newTestDatasetService(t *testing.T, specs map[models.Site]models.SiteSpec) *DatasetService {
	t.Helper()
	logger, m := testLogger(), testMetrics()
	return NewDatasetService(repository.NewCSVRepository(logger, m), specs, logger, m)
}

func loadFixture(t *testing.T) *models.Dataset {
	t.Helper()
	ds, err := newTestDatasetService(t, writeSites(t, openFieldCSV, agrivoltaicCSV)).Load(context.Background())
	require.NoError(t, err)
	return ds
}
