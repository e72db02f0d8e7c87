package services

import (
	"context"
	"time"

	"agrivoltaic-dashboard/internal/models"
	"agrivoltaic-dashboard/pkg/logging"
	"agrivoltaic-dashboard/pkg/metrics"
)

// FilterRequest is a date-range selection. Nil ends default to the data
// bounds.
type FilterRequest struct {
	StartDate *time.Time
	EndDate   *time.Time
	Fields    []models.Field
}

// Selection is the outcome of applying a FilterRequest to the dataset
type Selection struct {
	Requested models.DateRange
	Effective models.DateRange
	Bounds    models.DateRange
	InBounds  bool
	View      *models.Dataset
}

// FilterService selects rows by calendar date and renders them
type FilterService struct {
	datasets  *DatasetService
	presenter *Presenter
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewFilterService creates a new filter service
func NewFilterService(datasets *DatasetService, presenter *Presenter, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *FilterService {
	return &FilterService{
		datasets:  datasets,
		presenter: presenter,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// Select loads the dataset and filters both tables to the requested range
func (s *FilterService) Select(ctx context.Context, req FilterRequest) (*Selection, error) {
	ds, err := s.datasets.Load(ctx)
	if err != nil {
		return nil, err
	}
	return SelectRange(ds, req), nil
}

// SelectRange filters ds to the requested range. A range outside the data
// yields an empty view.
func SelectRange(ds *models.Dataset, req FilterRequest) *Selection {
	bounds, _ := DataBounds(ds)
	effective, ok := ResolveDateRange(req.StartDate, req.EndDate, bounds)

	sel := &Selection{
		Requested: effective,
		Effective: effective,
		Bounds:    bounds,
		InBounds:  ok,
	}
	if req.StartDate != nil {
		sel.Requested.Start = models.DateOf(*req.StartDate)
	}
	if req.EndDate != nil {
		sel.Requested.End = models.DateOf(*req.EndDate)
	}

	if ok {
		sel.View = FilterDataset(ds, effective)
	} else {
		sel.View = EmptyDataset(ds)
	}
	return sel
}

// View renders metrics and series for the requested range. Metrics are
// omitted when no row falls in the range.
func (s *FilterService) View(ctx context.Context, req FilterRequest) (*models.FilterView, error) {
	sel, err := s.Select(ctx, req)
	if err != nil {
		return nil, err
	}

	metricsOut, err := ComputeMetrics(sel.View)
	if err != nil {
		return nil, err
	}
	series, err := BuildAllSeries(sel.View, req.Fields)
	if err != nil {
		return nil, err
	}

	view := &models.FilterView{
		Requested: sel.Requested,
		Bounds:    sel.Bounds,
		RowCount:  sel.View.Len(),
		Metrics:   metricsOut,
		Series:    series,
	}
	if sel.InBounds {
		effective := sel.Effective
		view.Effective = &effective
	}

	s.logger.Debug(ctx, "[FILTER_VIEW] Date range selected", logging.Fields{
		"requested": sel.Requested.String(),
		"in_bounds": sel.InBounds,
		"rows":      view.RowCount,
	})

	return view, nil
}

// Report renders the CSV report of the requested range
func (s *FilterService) Report(ctx context.Context, req FilterRequest) ([]byte, error) {
	sel, err := s.Select(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.presenter.ExportCSV(ctx, sel.View)
}
