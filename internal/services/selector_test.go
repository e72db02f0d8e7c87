package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agrivoltaic-dashboard/internal/models"
)

func date(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func TestVisibleRange(t *testing.T) {
	ds := loadFixture(t)

	for c := 0; c < ds.Len(); c++ {
		for _, table := range []*models.Table{ds.OpenField, ds.Agrivoltaic} {
			visible := VisibleRange(table, c)
			assert.Equal(t, c+1, visible.Len(), "cursor %d", c)
			assert.Equal(t, 0, visible.Offset)
			assert.Equal(t, table.Rows[0].Time, visible.Rows[0].Time)
			assert.Equal(t, table.Rows[c].Time, visible.Rows[c].Time)
		}
	}

	assert.Equal(t, 0, VisibleRange(ds.OpenField, -3).Len())
	assert.Equal(t, ds.Len(), VisibleRange(ds.OpenField, 99).Len())
}

func TestResolveDateRange(t *testing.T) {
	bounds := models.DateRange{Start: date("2024-06-01"), End: date("2024-06-03")}

	tests := []struct {
		name      string
		start     *time.Time
		end       *time.Time
		wantRange string
		wantOK    bool
	}{
		{"defaults to bounds", nil, nil, "2024-06-01..2024-06-03", true},
		{"inside", datePtr("2024-06-02"), datePtr("2024-06-02"), "2024-06-02..2024-06-02", true},
		{"clamps start", datePtr("2024-05-01"), datePtr("2024-06-02"), "2024-06-01..2024-06-02", true},
		{"clamps end", datePtr("2024-06-02"), datePtr("2025-01-01"), "2024-06-02..2024-06-03", true},
		{"clamps both", datePtr("2020-01-01"), datePtr("2030-01-01"), "2024-06-01..2024-06-03", true},
		{"entirely before", datePtr("2024-01-01"), datePtr("2024-05-31"), "2024-01-01..2024-05-31", false},
		{"entirely after", datePtr("2024-06-04"), nil, "2024-06-04..2024-06-03", false},
		{"start after end", datePtr("2024-06-03"), datePtr("2024-06-01"), "2024-06-03..2024-06-01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveDateRange(tt.start, tt.end, bounds)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantRange, got.String())
		})
	}
}

func TestFilterByDate_InclusiveDays(t *testing.T) {
	at := func(s string) models.Observation {
		ts, err := time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			panic(err)
		}
		return models.Observation{Time: ts, Values: []float64{1}}
	}
	table := &models.Table{
		Columns: []string{"v"},
		Rows: []models.Observation{
			at("2024-06-01 23:59:59"),
			at("2024-06-02 00:00:00"),
			at("2024-06-02 12:00:00"),
			at("2024-06-02 23:59:59"),
			at("2024-06-03 00:00:00"),
		},
	}

	got := FilterByDate(table, models.DateRange{Start: date("2024-06-02"), End: date("2024-06-02")})
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, 1, got.Offset)
	assert.Equal(t, table.Rows[3].Time, got.Rows[2].Time)

	got = FilterByDate(table, models.DateRange{Start: date("2024-06-05"), End: date("2024-06-06")})
	assert.True(t, got.Empty())
}

func TestSelectRange_OutsideBoundsIsEmpty(t *testing.T) {
	ds := loadFixture(t)

	sel := SelectRange(ds, FilterRequest{StartDate: datePtr("2023-01-01"), EndDate: datePtr("2023-12-31")})
	assert.False(t, sel.InBounds)
	assert.True(t, sel.View.OpenField.Empty())
	assert.True(t, sel.View.Agrivoltaic.Empty())
	assert.Equal(t, "2023-01-01..2023-12-31", sel.Requested.String())

	sel = SelectRange(ds, FilterRequest{StartDate: datePtr("2024-06-02")})
	assert.True(t, sel.InBounds)
	assert.Equal(t, 3, sel.View.Len())
	assert.Equal(t, "2024-06-02..2024-06-03", sel.Effective.String())
}
