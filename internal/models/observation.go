package models

import (
	"math"
	"time"
)

// Site identifies one of the two simulated site configurations
type Site string

const (
	SiteOpenField   Site = "open_field"
	SiteAgrivoltaic Site = "agrivoltaic"
)

// Sites lists the compared sites in presentation order
var Sites = []Site{SiteOpenField, SiteAgrivoltaic}

// Label returns the variant label used in comparison series
func (s Site) Label() string {
	switch s {
	case SiteOpenField:
		return "Open Field"
	case SiteAgrivoltaic:
		return "Agrivoltaic"
	default:
		return string(s)
	}
}

// Valid reports whether s is a known site
func (s Site) Valid() bool {
	return s == SiteOpenField || s == SiteAgrivoltaic
}

// Field is a tracked measurement present in both site tables
type Field string

const (
	FieldIrradiance  Field = "irradiance"
	FieldTemperature Field = "temperature"
)

// Fields lists the tracked fields in presentation order
var Fields = []Field{FieldIrradiance, FieldTemperature}

// DisplayName returns the shared value column name used for charting
func (f Field) DisplayName() string {
	switch f {
	case FieldIrradiance:
		return "GHI (W/m²)"
	case FieldTemperature:
		return "Temp (°C)"
	default:
		return string(f)
	}
}

// Unit returns the measurement unit of the field
func (f Field) Unit() string {
	switch f {
	case FieldIrradiance:
		return "W/m²"
	case FieldTemperature:
		return "°C"
	default:
		return ""
	}
}

// Valid reports whether f is a tracked field
func (f Field) Valid() bool {
	return f == FieldIrradiance || f == FieldTemperature
}

// SiteSpec describes where a site's observations live and how its
// columns map onto the tracked fields
type SiteSpec struct {
	Site    Site             `json:"site" yaml:"-"`
	Label   string           `json:"label" yaml:"label,omitempty"`
	Path    string           `json:"path" yaml:"path,omitempty"`
	Columns map[Field]string `json:"columns" yaml:"columns,omitempty"`
}

// Column returns the source column holding field f
func (s SiteSpec) Column(f Field) (string, bool) {
	name, ok := s.Columns[f]
	return name, ok && name != ""
}

// DisplayLabel returns the configured label, falling back to the site label
func (s SiteSpec) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Site.Label()
}

// DefaultSiteSpecs returns the column layout of the simulation exports
func DefaultSiteSpecs() map[Site]SiteSpec {
	return map[Site]SiteSpec{
		SiteOpenField: {
			Site:  SiteOpenField,
			Label: SiteOpenField.Label(),
			Path:  "full_simulation_data.csv",
			Columns: map[Field]string{
				FieldIrradiance:  "GHI_Open_Field (W/m2)",
				FieldTemperature: "Temperature_Open_Field (C)",
			},
		},
		SiteAgrivoltaic: {
			Site:  SiteAgrivoltaic,
			Label: SiteAgrivoltaic.Label(),
			Path:  "full_simulation_data1.csv",
			Columns: map[Field]string{
				FieldIrradiance:  "GHI_Agrivoltaic (W/m2)",
				FieldTemperature: "Temperature_Agrivoltaic (C)",
			},
		},
	}
}

// Observation is a single timestamped row of a site table.
// Values is aligned with Table.Columns; missing cells are NaN.
type Observation struct {
	Time   time.Time
	Values []float64
}

// Table is an ordered, time-indexed sequence of observations for one site.
// Slices share the parent's rows and record their Offset into it.
type Table struct {
	Site       Site
	TimeColumn string
	Columns    []string
	Rows       []Observation
	Version    string
	Offset     int
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table holds no rows
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// ColumnIndex returns the position of a named column in Values
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Slice returns rows [from, to) as a table sharing the underlying rows
func (t *Table) Slice(from, to int) *Table {
	if from < 0 {
		from = 0
	}
	if to > len(t.Rows) {
		to = len(t.Rows)
	}
	if to < 0 {
		to = 0
	}
	if from > to {
		from = to
	}
	return &Table{
		Site:       t.Site,
		TimeColumn: t.TimeColumn,
		Columns:    t.Columns,
		Rows:       t.Rows[from:to:to],
		Version:    t.Version,
		Offset:     t.Offset + from,
	}
}

// Last returns the most recent row
func (t *Table) Last() (Observation, bool) {
	if t.Empty() {
		return Observation{}, false
	}
	return t.Rows[len(t.Rows)-1], true
}

// Value returns the named column of row i
func (t *Table) Value(i int, column string) (float64, bool) {
	idx, ok := t.ColumnIndex(column)
	if !ok || i < 0 || i >= len(t.Rows) {
		return math.NaN(), false
	}
	return t.Rows[i].Values[idx], true
}

// Bounds returns the first and last timestamps
func (t *Table) Bounds() (time.Time, time.Time, bool) {
	if t.Empty() {
		return time.Time{}, time.Time{}, false
	}
	return t.Rows[0].Time, t.Rows[len(t.Rows)-1].Time, true
}

// Dataset pairs the two site tables with the specs they were loaded from
type Dataset struct {
	OpenField   *Table
	Agrivoltaic *Table
	Specs       map[Site]SiteSpec
}

// Table returns the table of a site
func (d *Dataset) Table(s Site) *Table {
	switch s {
	case SiteOpenField:
		return d.OpenField
	case SiteAgrivoltaic:
		return d.Agrivoltaic
	default:
		return nil
	}
}

// Len returns the shared row count of the aligned tables
func (d *Dataset) Len() int {
	return d.OpenField.Len()
}

// WithTables returns a dataset over the given tables sharing d's specs
func (d *Dataset) WithTables(openField, agrivoltaic *Table) *Dataset {
	return &Dataset{
		OpenField:   openField,
		Agrivoltaic: agrivoltaic,
		Specs:       d.Specs,
	}
}

// Spec returns the SiteSpec of a site, defaulting its Site field
func (d *Dataset) Spec(s Site) SiteSpec {
	spec := d.Specs[s]
	spec.Site = s
	return spec
}
