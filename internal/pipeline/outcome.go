package pipeline

import (
	"errors"
	"sort"
	"sync"

	"github.com/sells-group/od-table/internal/fetcher"
	"github.com/sells-group/od-table/internal/trip"
)

// ODRow is one origin-destination record of the output table.
type ODRow struct {
	OriginZoneID          string  `json:"origin_zone_id"`
	OriginZoneName        string  `json:"origin_zone_name"`
	OriginPopulation      int64   `json:"origin_population"`
	DestinationZoneID     string  `json:"destination_zone_id"`
	DestinationZoneName   string  `json:"destination_zone_name"`
	DestinationPopulation int64   `json:"destination_population"`
	Distance              float64 `json:"distance_of_trip"`
	TotalPassengers       float64 `json:"total_passengers"`
	PassengersByAir       float64 `json:"passengers_by_air"`
	PassengersByVehicle   float64 `json:"passengers_by_vehicle"`
}

// ErrorKind classifies why a batch failed.
type ErrorKind string

// Batch failure kinds.
const (
	KindMalformedRow  ErrorKind = "malformed_row"
	KindMissingColumn ErrorKind = "missing_column"
	KindConversion    ErrorKind = "conversion"
	KindPanic         ErrorKind = "panic"
	KindInternal      ErrorKind = "internal"
)

// classify maps a batch error onto its kind.
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, fetcher.ErrMalformedRow):
		return KindMalformedRow
	case errors.Is(err, trip.ErrMissingColumn):
		return KindMissingColumn
	case errors.Is(err, trip.ErrConversion):
		return KindConversion
	default:
		return KindInternal
	}
}

// BatchFailure records a batch that contributed no rows.
type BatchFailure struct {
	Index   int       `json:"batch_index" yaml:"batch_index"`
	Kind    ErrorKind `json:"kind" yaml:"kind"`
	Message string    `json:"message" yaml:"message"`
}

// BatchOutcome is the result of processing one batch: either rows or a
// failure, never both.
type BatchOutcome struct {
	Index   int
	Rows    []ODRow
	Stats   trip.Stats
	Failure *BatchFailure
}

// Succeeded returns a successful outcome for batch index.
func Succeeded(index int, rows []ODRow, stats trip.Stats) BatchOutcome {
	return BatchOutcome{Index: index, Rows: rows, Stats: stats}
}

// Failed returns a failed outcome for batch index. The kind is derived from err.
func Failed(index int, err error) BatchOutcome {
	return failedAs(index, classify(err), err)
}

func failedAs(index int, kind ErrorKind, err error) BatchOutcome {
	return BatchOutcome{
		Index: index,
		Failure: &BatchFailure{
			Index:   index,
			Kind:    kind,
			Message: err.Error(),
		},
	}
}

// OK reports whether the batch succeeded.
func (o BatchOutcome) OK() bool { return o.Failure == nil }

// Accumulator collects batch outcomes from concurrent workers.
type Accumulator struct {
	mu       sync.Mutex
	outcomes []BatchOutcome
}

// Add records an outcome. Safe for concurrent use.
func (a *Accumulator) Add(o BatchOutcome) {
	a.mu.Lock()
	a.outcomes = append(a.outcomes, o)
	a.mu.Unlock()
}

// Len returns the number of outcomes recorded so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.outcomes)
}

// Result folds the outcomes in batch order, so rows appear in trip file order
// regardless of which worker finished first.
func (a *Accumulator) Result() *Result {
	a.mu.Lock()
	outcomes := make([]BatchOutcome, len(a.outcomes))
	copy(outcomes, a.outcomes)
	a.mu.Unlock()

	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].Index < outcomes[j].Index })

	res := &Result{Rows: []ODRow{}, Failures: []BatchFailure{}}
	for _, o := range outcomes {
		res.Batches++
		res.Stats.Add(o.Stats)
		if o.Failure != nil {
			res.Failures = append(res.Failures, *o.Failure)
			continue
		}
		res.Rows = append(res.Rows, o.Rows...)
	}
	return res
}

// Result is the accumulated output of a run.
type Result struct {
	Rows     []ODRow
	Failures []BatchFailure
	Batches  int
	Stats    trip.Stats
	Summary  Summary
}
