package services

import (
	"context"
	"time"

	"agrivoltaic-dashboard/internal/events"
	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/internal/session"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

// PlaybackService steps viewers through the dataset one row at a time.
// Each call loads the dataset, applies the session cursor and returns a
// fresh render state.
type PlaybackService struct {
	datasets  *DatasetService
	sessions  session.Store
	publisher events.Publisher
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	now       func() time.Time
}

// NewPlaybackService creates a new playback service. A nil publisher
// disables playback events.
func NewPlaybackService(datasets *DatasetService, sessions session.Store, publisher events.Publisher, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PlaybackService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &PlaybackService{
		datasets:  datasets,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		metrics:   metricsCollector,
		now:       time.Now,
	}
}

// CreateSession starts a session at cursor 0 and returns its render state
func (s *PlaybackService) CreateSession(ctx context.Context, fields []models.Field) (*models.PlaybackView, error) {
	ds, err := s.datasets.Load(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(ctx)
	if err != nil {
		s.metrics.RecordSessionStoreError("create")
		return nil, err
	}

	s.logger.Info(ctx, "[PLAYBACK_CREATE] Playback session created", logging.Fields{
		"session_id": sess.ID,
		"total_rows": ds.Len(),
	})

	return s.render(ds, sess, "", fields)
}

// Render returns the current view of a session. A pending completion
// notice is included once and then cleared.
func (s *PlaybackService) Render(ctx context.Context, id string, fields []models.Field) (*models.PlaybackView, error) {
	ds, err := s.datasets.Load(ctx)
	if err != nil {
		return nil, err
	}

	var notice string
	sess, err := s.sessions.Update(ctx, id, func(sess *session.Session) error {
		sess.Normalize(ds.Len())
		notice = sess.TakeNotice()
		return nil
	})
	if err != nil {
		s.recordStoreError("render", err)
		return nil, err
	}

	return s.render(ds, sess, notice, fields)
}

// Advance moves the session one row forward, wrapping to row 0 after the
// last row
func (s *PlaybackService) Advance(ctx context.Context, id string) (*models.AdvanceResult, error) {
	ds, err := s.datasets.Load(ctx)
	if err != nil {
		return nil, err
	}

	var completed bool
	sess, err := s.sessions.Update(ctx, id, func(sess *session.Session) error {
		completed = sess.Advance(ds.Len())
		return nil
	})
	if err != nil {
		s.recordStoreError("advance", err)
		return nil, err
	}

	s.metrics.PlaybackAdvancesTotal.Inc()
	if completed {
		s.metrics.PlaybackCompletionsTotal.Inc()
		s.logger.Info(ctx, "[PLAYBACK_COMPLETE] Playback finished and reset", logging.Fields{
			"session_id":  sess.ID,
			"total_rows":  ds.Len(),
			"completions": sess.Completions,
		})
	}

	s.publish(ctx, ds, sess, completed)

	return &models.AdvanceResult{
		SessionID: sess.ID,
		Cursor:    sess.Cursor,
		TotalRows: ds.Len(),
		Completed: completed,
	}, nil
}

// Reset moves the session back to row 0
func (s *PlaybackService) Reset(ctx context.Context, id string) (*models.AdvanceResult, error) {
	ds, err := s.datasets.Load(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Update(ctx, id, func(sess *session.Session) error {
		sess.Reset()
		return nil
	})
	if err != nil {
		s.recordStoreError("reset", err)
		return nil, err
	}

	return &models.AdvanceResult{
		SessionID: sess.ID,
		Cursor:    sess.Cursor,
		TotalRows: ds.Len(),
	}, nil
}

// DeleteSession drops a session
func (s *PlaybackService) DeleteSession(ctx context.Context, id string) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		s.recordStoreError("delete", err)
		return err
	}
	return nil
}

func (s *PlaybackService) render(ds *models.Dataset, sess *session.Session, notice string, fields []models.Field) (*models.PlaybackView, error) {
	cursor := sess.Cursor
	if cursor < 0 || cursor >= ds.Len() {
		cursor = 0
	}
	visible := VisibleDataset(ds, cursor)

	metricsOut, err := ComputeMetrics(visible)
	if err != nil {
		return nil, err
	}
	series, err := BuildAllSeries(visible, fields)
	if err != nil {
		return nil, err
	}

	view := &models.PlaybackView{
		SessionID: sess.ID,
		Cursor:    cursor,
		TotalRows: ds.Len(),
		Metrics:   metricsOut,
		Series:    series,
		Notice:    notice,
	}
	if last, ok := visible.OpenField.Last(); ok {
		view.CurrentTime = last.Time
	}
	return view, nil
}

// publish emits the step to the event feed. Failures are logged and
// counted but never fail the step.
func (s *PlaybackService) publish(ctx context.Context, ds *models.Dataset, sess *session.Session, completed bool) {
	event := events.PlaybackEvent{
		SessionID: sess.ID,
		Cursor:    sess.Cursor,
		TotalRows: ds.Len(),
		Completed: completed,
		Values:    make(map[models.Site]map[models.Field]*float64, len(models.Sites)),
		EmittedAt: s.now().UTC(),
	}
	if sess.Cursor < ds.Len() {
		event.ObservedAt = ds.OpenField.Rows[sess.Cursor].Time
	}
	for _, site := range models.Sites {
		table := ds.Table(site)
		spec := ds.Spec(site)
		values := make(map[models.Field]*float64, len(models.Fields))
		for _, field := range models.Fields {
			column, _ := spec.Column(field)
			v, _ := table.Value(sess.Cursor, column)
			values[field] = models.FloatPtr(v)
		}
		event.Values[site] = values
	}

	if err := s.publisher.PublishPlayback(ctx, event); err != nil {
		s.metrics.EventPublishErrorsTotal.Inc()
		s.logger.Warn(ctx, "[PLAYBACK_EVENT_ERROR] Failed to publish playback event", logging.Fields{
			"session_id": sess.ID,
			"cursor":     sess.Cursor,
			"error":      err.Error(),
		})
	}
}

func (s *PlaybackService) recordStoreError(operation string, err error) {
	if models.IsNotFound(err, models.ResourceSession) {
		return
	}
	s.metrics.RecordSessionStoreError(operation)
}
