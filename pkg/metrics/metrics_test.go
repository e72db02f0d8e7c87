package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricValue(t *testing.T, m prometheus.Metric) *dto.Metric {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	return &out
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	return metricValue(t, c).GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	return metricValue(t, g).GetGauge().GetValue()
}

func TestCollector_IsolatedRegistries(t *testing.T) {
	// two collectors on separate registries must not collide
	a := NewCollector("dash", prometheus.NewRegistry())
	b := NewCollector("dash", prometheus.NewRegistry())

	a.RecordAPIRequest("/api/filter", "GET", "200")
	assert.Equal(t, 1.0, counterValue(t, a.APIRequestsTotal.WithLabelValues("/api/filter", "GET", "200")))
	assert.Equal(t, 0.0, counterValue(t, b.APIRequestsTotal.WithLabelValues("/api/filter", "GET", "200")))
}

func TestCollector_CacheLookups(t *testing.T) {
	c := NewCollector("dash", prometheus.NewRegistry())

	c.RecordCacheLookup(true)
	c.RecordCacheLookup(true)
	c.RecordCacheLookup(false)
	c.RecordExportLookup(true)

	assert.Equal(t, 2.0, counterValue(t, c.LoaderCacheResults.WithLabelValues("hit")))
	assert.Equal(t, 1.0, counterValue(t, c.LoaderCacheResults.WithLabelValues("miss")))
	assert.Equal(t, 1.0, counterValue(t, c.ExportCacheResults.WithLabelValues("hit")))
}

func TestCollector_ConnectionPool(t *testing.T) {
	c := NewCollector("dash", prometheus.NewRegistry())
	c.UpdateDBConnectionPool(2, 3, 5)

	assert.Equal(t, 2.0, gaugeValue(t, c.DBConnectionPool.WithLabelValues("in_use")))
	assert.Equal(t, 3.0, gaugeValue(t, c.DBConnectionPool.WithLabelValues("idle")))
	assert.Equal(t, 5.0, gaugeValue(t, c.DBConnectionPool.WithLabelValues("total")))
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollector("dash", prometheus.NewRegistry())
	histogram := c.LoaderDuration.WithLabelValues("csv").(prometheus.Histogram)
	timer := c.NewTimer(histogram)
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	assert.Greater(t, d, time.Duration(0))
	assert.Equal(t, uint64(1), metricValue(t, histogram).GetHistogram().GetSampleCount())
}

func TestCollector_ErrorCounters(t *testing.T) {
	c := NewCollector("dash", prometheus.NewRegistry())

	c.RecordAPIError("input_missing", "/api/filter")
	c.RecordIngestionError("misaligned")
	c.RecordIngestionError("misaligned")
	c.RecordDBError("query_error")
	c.RecordSessionStoreError("update")

	assert.Equal(t, 1.0, counterValue(t, c.APIErrorsTotal.WithLabelValues("input_missing", "/api/filter")))
	assert.Equal(t, 2.0, counterValue(t, c.IngestionErrorsTotal.WithLabelValues("misaligned")))
	assert.Equal(t, 1.0, counterValue(t, c.DBErrorsTotal.WithLabelValues("query_error")))
	assert.Equal(t, 1.0, counterValue(t, c.SessionStoreErrorsTotal.WithLabelValues("update")))
}
