package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrivoltaic-dashboard/internal/events"
	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/internal/session"
	"agrivoltaic-dashboard/pkg/metrics"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PlaybackEvent
	err    error
}

func (p *recordingPublisher) PublishPlayback(_ context.Context, event events.PlaybackEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func newTestPlayback(t *testing.T, publisher events.Publisher) (*PlaybackService, *metrics.Collector) {
	t.Helper()
	m := testMetrics()
	datasets := newTestDatasetService(t, writeSites(t, openFieldCSV, agrivoltaicCSV))
	return NewPlaybackService(datasets, session.NewMemoryStore(time.Hour), publisher, testLogger(), m), m
}

func TestPlaybackService_Cycle(t *testing.T) {
	publisher := &recordingPublisher{}
	svc, m := newTestPlayback(t, publisher)
	ctx := context.Background()

	view, err := svc.CreateSession(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Cursor)
	assert.Equal(t, 5, view.TotalRows)
	assert.Len(t, view.Series, 2)
	assert.Len(t, view.Series[0].Points, 2, "one row per site")
	assert.Empty(t, view.Notice)
	id := view.SessionID

	completions := 0
	for step := 1; step <= 5; step++ {
		res, err := svc.Advance(ctx, id)
		require.NoError(t, err)
		if res.Completed {
			completions++
			assert.Equal(t, 0, res.Cursor)
		} else {
			assert.Equal(t, step, res.Cursor)
		}
	}
	assert.Equal(t, 1, completions, "exactly one completion per pass")
	assert.Equal(t, 5.0, counterValue(t, m.PlaybackAdvancesTotal))
	assert.Equal(t, 1.0, counterValue(t, m.PlaybackCompletionsTotal))

	view, err = svc.Render(ctx, id, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Cursor)
	assert.Equal(t, models.PlaybackFinishedNotice, view.Notice)

	view, err = svc.Render(ctx, id, nil)
	require.NoError(t, err)
	assert.Empty(t, view.Notice, "notice is shown once")

	require.Len(t, publisher.events, 5)
	last := publisher.events[4]
	assert.True(t, last.Completed)
	assert.Equal(t, 0, last.Cursor)
	assert.Equal(t, id, last.SessionID)
	require.NotNil(t, last.Values[models.SiteOpenField][models.FieldIrradiance])
	assert.Equal(t, 100.5, *last.Values[models.SiteOpenField][models.FieldIrradiance])

	fourth := publisher.events[3]
	assert.Equal(t, 4, fourth.Cursor)
	assert.Nil(t, fourth.Values[models.SiteAgrivoltaic][models.FieldTemperature])
}

func TestPlaybackService_RenderShowsVisibleRows(t *testing.T) {
	svc, _ := newTestPlayback(t, nil)
	ctx := context.Background()

	view, err := svc.CreateSession(ctx, []models.Field{models.FieldTemperature})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.Advance(ctx, view.SessionID)
		require.NoError(t, err)
	}

	view, err = svc.Render(ctx, view.SessionID, []models.Field{models.FieldTemperature})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Cursor)
	assert.True(t, time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC).Equal(view.CurrentTime))
	require.Len(t, view.Series, 1)
	assert.Len(t, view.Series[0].Points, 8)
	require.Len(t, view.Metrics, 2)
	assert.Equal(t, "4.22", view.Metrics[1].DifferenceDisplay)
}

func TestPlaybackService_Reset(t *testing.T) {
	svc, _ := newTestPlayback(t, nil)
	ctx := context.Background()

	view, err := svc.CreateSession(ctx, nil)
	require.NoError(t, err)
	_, err = svc.Advance(ctx, view.SessionID)
	require.NoError(t, err)

	res, err := svc.Reset(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Cursor)
	assert.False(t, res.Completed)
}

func TestPlaybackService_PublishFailureDoesNotFailAdvance(t *testing.T) {
	svc, m := newTestPlayback(t, &recordingPublisher{err: errors.New("broker down")})
	ctx := context.Background()

	view, err := svc.CreateSession(ctx, nil)
	require.NoError(t, err)

	res, err := svc.Advance(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cursor)
	assert.Equal(t, 1.0, counterValue(t, m.EventPublishErrorsTotal))
}

func TestPlaybackService_UnknownSession(t *testing.T) {
	svc, m := newTestPlayback(t, nil)
	ctx := context.Background()

	_, err := svc.Render(ctx, "missing", nil)
	assert.True(t, models.IsNotFound(err, models.ResourceSession))
	_, err = svc.Advance(ctx, "missing")
	assert.True(t, models.IsNotFound(err, models.ResourceSession))
	assert.True(t, models.IsNotFound(svc.DeleteSession(ctx, "missing"), models.ResourceSession))
	assert.Equal(t, 0.0, counterValue(t, m.SessionStoreErrorsTotal.WithLabelValues("advance")))
}

func TestPlaybackService_DeleteSession(t *testing.T) {
	svc, _ := newTestPlayback(t, nil)
	ctx := context.Background()

	view, err := svc.CreateSession(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteSession(ctx, view.SessionID))

	_, err = svc.Render(ctx, view.SessionID, nil)
	assert.True(t, models.IsNotFound(err, models.ResourceSession))
}

func TestPlaybackService_MissingInputHalts(t *testing.T) {
	logger, m := testLogger(), testMetrics()
	datasets := newTestDatasetService(t, writeSites(t, openFieldCSV, ""))
	store := session.NewMemoryStore(time.Hour)
	svc := NewPlaybackService(datasets, store, nil, logger, m)

	view, err := svc.CreateSession(context.Background(), nil)
	assert.Nil(t, view)
	assert.True(t, models.IsNotFound(err, models.ResourceObservationFile))
	assert.Equal(t, 0, store.Len(), "no session is created without data")
}
