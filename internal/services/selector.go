package services

import (
	"sort"
	"time"

	"agrivoltaic-dashboard/internal/models"
)

// VisibleRange returns rows [0, cursor] of t. A negative cursor selects
// nothing and a cursor past the end selects every row.
func VisibleRange(t *models.Table, cursor int) *models.Table {
	return t.Slice(0, cursor+1)
}

// VisibleDataset applies VisibleRange to both site tables
func VisibleDataset(ds *models.Dataset, cursor int) *models.Dataset {
	return ds.WithTables(VisibleRange(ds.OpenField, cursor), VisibleRange(ds.Agrivoltaic, cursor))
}

// ResolveDateRange fills a missing start or end from bounds and clamps the
// result into bounds. It reports false when the request shares no day with
// bounds or has start after end; the returned range is then the unclamped
// request.
func ResolveDateRange(start, end *time.Time, bounds models.DateRange) (models.DateRange, bool) {
	r := models.DateRange{Start: bounds.Start, End: bounds.End}
	if start != nil {
		r.Start = models.DateOf(*start)
	}
	if end != nil {
		r.End = models.DateOf(*end)
	}

	if r.Start.After(r.End) || r.End.Before(bounds.Start) || r.Start.After(bounds.End) {
		return r, false
	}

	if r.Start.Before(bounds.Start) {
		r.Start = bounds.Start
	}
	if r.End.After(bounds.End) {
		r.End = bounds.End
	}
	return r, true
}

// FilterByDate returns the rows of t within [start 00:00:00, end 23:59:59]
func FilterByDate(t *models.Table, r models.DateRange) *models.Table {
	lo, hi := r.StartInstant(), r.EndInstant()
	from := sort.Search(t.Len(), func(i int) bool {
		return !t.Rows[i].Time.Before(lo)
	})
	to := sort.Search(t.Len(), func(i int) bool {
		return t.Rows[i].Time.After(hi)
	})
	return t.Slice(from, to)
}

// FilterDataset applies FilterByDate to both site tables
func FilterDataset(ds *models.Dataset, r models.DateRange) *models.Dataset {
	return ds.WithTables(FilterByDate(ds.OpenField, r), FilterByDate(ds.Agrivoltaic, r))
}

// EmptyDataset returns ds with both tables sliced to zero rows
func EmptyDataset(ds *models.Dataset) *models.Dataset {
	return ds.WithTables(ds.OpenField.Slice(0, 0), ds.Agrivoltaic.Slice(0, 0))
}
