// Package trip filters and joins batches of passenger trip records against
// the zone lookup.
package trip

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/od-table/internal/fetcher"
	"github.com/sells-group/od-table/internal/zone"
)

// Batch-level failures.
var (
	ErrMissingColumn = eris.New("trip: missing column")
	ErrConversion    = eris.New("trip: conversion failed")
)

// ColumnNames names the trip source columns the join reads.
type ColumnNames struct {
	Origin      string
	Destination string
	Total       string
	Air         string
	Vehicle     string
}

// DefaultColumnNames returns the column names of the NextGen passenger OD extract.
func DefaultColumnNames() ColumnNames {
	return ColumnNames{
		Origin:      "origin_zone_id",
		Destination: "destination_zone_id",
		Total:       "annual_total_trips",
		Air:         "mode_air",
		Vehicle:     "mode_vehicle",
	}
}

// Columns holds resolved header positions.
type Columns struct {
	Origin      int
	Destination int
	Total       int
	Air         int
	Vehicle     int
}

// ResolveColumns finds each named column in header, case-insensitively.
func ResolveColumns(header []string, names ColumnNames) (Columns, error) {
	idx := fetcher.ColumnIndex(header)
	var missing []string
	find := func(name string) int {
		i, ok := idx[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}

	cols := Columns{
		Origin:      find(names.Origin),
		Destination: find(names.Destination),
		Total:       find(names.Total),
		Air:         find(names.Air),
		Vehicle:     find(names.Vehicle),
	}
	if len(missing) > 0 {
		return Columns{}, eris.Wrapf(ErrMissingColumn, "%s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// KeyPrefix returns the MSA code at the start of a trip zone ID. IDs not
// starting with five ASCII digits have no MSA code.
func KeyPrefix(id string) (int, bool) {
	return zone.KeyPrefix(id)
}

// Record is one trip row that passed the MSA prefix filter.
type Record struct {
	OriginID      string
	DestinationID string
	TotalTrips    float64
	Air           float64
	Vehicle       float64

	originKey      int
	destinationKey int
}

// Joined is a trip record with both endpoint zones attached.
type Joined struct {
	Record
	Origin      zone.Record
	Destination zone.Record
}

// Stats counts rows through one Join call.
type Stats struct {
	Rows      int `json:"rows"`
	Filtered  int `json:"filtered"`
	Unmatched int `json:"unmatched"`
	Joined    int `json:"joined"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Rows += other.Rows
	s.Filtered += other.Filtered
	s.Unmatched += other.Unmatched
	s.Joined += other.Joined
}

// Join keeps rows whose origin and destination IDs both start with a
// five-digit MSA code, then inner-joins them to the lookup on the origin code
// and again on the destination code. Rows failing the prefix filter or either
// join are dropped and counted, not reported as errors. A missing column or a
// non-numeric count in a surviving row fails the whole batch.
func Join(header []string, rows [][]string, lookup *zone.Lookup, names ColumnNames) ([]Joined, Stats, error) {
	stats := Stats{Rows: len(rows)}

	cols, err := ResolveColumns(header, names)
	if err != nil {
		return nil, stats, err
	}

	records, err := filter(rows, cols)
	if err != nil {
		return nil, stats, err
	}
	stats.Filtered = len(rows) - len(records)

	byOrigin := make([]Joined, 0, len(records))
	for _, rec := range records {
		o, ok := lookup.Get(rec.originKey)
		if !ok {
			continue
		}
		byOrigin = append(byOrigin, Joined{Record: rec, Origin: o})
	}

	joined := make([]Joined, 0, len(byOrigin))
	for _, j := range byOrigin {
		d, ok := lookup.Get(j.destinationKey)
		if !ok {
			continue
		}
		j.Destination = d
		joined = append(joined, j)
	}

	stats.Unmatched = len(records) - len(joined)
	stats.Joined = len(joined)
	return joined, stats, nil
}

// filter applies the MSA prefix filter and parses the counts of the rows it keeps.
func filter(rows [][]string, cols Columns) ([]Record, error) {
	out := make([]Record, 0, len(rows))
	for i, row := range rows {
		origin := fetcher.Field(row, cols.Origin)
		destination := fetcher.Field(row, cols.Destination)

		oKey, ok := KeyPrefix(origin)
		if !ok {
			continue
		}
		dKey, ok := KeyPrefix(destination)
		if !ok {
			continue
		}

		rec := Record{
			OriginID:       origin,
			DestinationID:  destination,
			originKey:      oKey,
			destinationKey: dKey,
		}
		var err error
		if rec.TotalTrips, err = parseNumber(row, cols.Total); err != nil {
			return nil, eris.Wrapf(ErrConversion, "row %d: %v", i+1, err)
		}
		if rec.Air, err = parseNumber(row, cols.Air); err != nil {
			return nil, eris.Wrapf(ErrConversion, "row %d: %v", i+1, err)
		}
		if rec.Vehicle, err = parseNumber(row, cols.Vehicle); err != nil {
			return nil, eris.Wrapf(ErrConversion, "row %d: %v", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseNumber reads a count column. Blank cells count as zero.
func parseNumber(row []string, idx int) (float64, error) {
	s := fetcher.Field(row, idx)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("column %d: invalid number %q", idx+1, s)
	}
	return v, nil
}
