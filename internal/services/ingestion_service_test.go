package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/internal/repository"
)

// recordingWriter stages each site like a transaction and keeps the
// staged tables only when every site was written.
type recordingWriter struct {
	saved    map[models.Site]*models.Table
	calls    int
	failSite models.Site
	err      error
}

func (w *recordingWriter) SaveTables(_ context.Context, ds *models.Dataset) error {
	w.calls++
	staged := make(map[models.Site]*models.Table)
	for _, site := range models.Sites {
		if w.err != nil && (w.failSite == "" || w.failSite == site) {
			return w.err
		}
		staged[site] = ds.Table(site)
	}
	w.saved = staged
	return nil
}

func newTestIngestion(writer TableWriter) *IngestionService {
	logger, m := testLogger(), testMetrics()
	return NewIngestionService(repository.NewCSVRepository(logger, m), writer, logger, m)
}

func TestIngestionService_IngestSites(t *testing.T) {
	writer := &recordingWriter{}
	specs := writeSites(t, openFieldCSV, agrivoltaicCSV)

	result, err := newTestIngestion(writer).IngestSites(context.Background(), specs)
	require.NoError(t, err)

	assert.Equal(t, 10, result.TotalRows)
	require.Len(t, result.Sites, 2)
	assert.Equal(t, models.SiteOpenField, result.Sites[0].Site)
	assert.Equal(t, 2, result.Sites[0].Columns)
	assert.NotEmpty(t, result.Sites[1].Version)

	assert.Equal(t, 1, writer.calls)
	require.Len(t, writer.saved, 2)
	assert.Equal(t, 5, writer.saved[models.SiteAgrivoltaic].Len())
}

func TestIngestionService_NothingWrittenOnFailure(t *testing.T) {
	short := strings.Join(strings.Split(agrivoltaicCSV, "\n")[:3], "\n") + "\n"

	tests := []struct {
		name        string
		openField   string
		agrivoltaic string
		writerErr   error
		failSite    models.Site
		checkErr    func(t *testing.T, err error)
	}{
		{
			name:        "missing file",
			openField:   openFieldCSV,
			agrivoltaic: "",
			checkErr: func(t *testing.T, err error) {
				assert.True(t, models.IsNotFound(err, models.ResourceObservationFile))
			},
		},
		{
			name:        "misaligned tables",
			openField:   openFieldCSV,
			agrivoltaic: short,
			checkErr: func(t *testing.T, err error) {
				var ae *models.AlignmentError
				assert.ErrorAs(t, err, &ae)
			},
		},
		{
			name:        "store failure",
			openField:   openFieldCSV,
			agrivoltaic: agrivoltaicCSV,
			writerErr:   errors.New("connection refused"),
			checkErr: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "connection refused")
			},
		},
		{
			name:        "store failure on second site",
			openField:   openFieldCSV,
			agrivoltaic: agrivoltaicCSV,
			writerErr:   errors.New("disk full"),
			failSite:    models.SiteAgrivoltaic,
			checkErr: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "disk full")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &recordingWriter{err: tt.writerErr, failSite: tt.failSite}
			result, err := newTestIngestion(writer).IngestSites(context.Background(), writeSites(t, tt.openField, tt.agrivoltaic))
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Empty(t, writer.saved)
			if tt.writerErr == nil {
				assert.Zero(t, writer.calls)
			}
			tt.checkErr(t, err)
		})
	}
}
