package pipeline

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/od-table/internal/distance"
	"github.com/sells-group/od-table/internal/zone"
)

// Summary describes a completed run.
type Summary struct {
	RunID         string          `json:"run_id" yaml:"run_id"`
	StartedAt     time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time       `json:"finished_at" yaml:"finished_at"`
	DurationMs    int64           `json:"duration_ms" yaml:"duration_ms"`
	Unit          distance.Unit   `json:"distance_unit" yaml:"distance_unit"`
	EarthRadius   float64         `json:"earth_radius" yaml:"earth_radius"`
	BatchSize     int             `json:"batch_size" yaml:"batch_size"`
	Workers       int             `json:"workers" yaml:"workers"`
	Zones         int             `json:"zones" yaml:"zones"`
	ZoneBuild     zone.BuildStats `json:"zone_build" yaml:"zone_build"`
	Batches       int             `json:"batches" yaml:"batches"`
	FailedBatches int             `json:"failed_batches" yaml:"failed_batches"`
	RowsRead      int             `json:"rows_read" yaml:"rows_read"`
	RowsFiltered  int             `json:"rows_filtered" yaml:"rows_filtered"`
	RowsUnmatched int             `json:"rows_unmatched" yaml:"rows_unmatched"`
	RowsOutput    int             `json:"rows_output" yaml:"rows_output"`

	TotalPassengers float64 `json:"total_passengers" yaml:"total_passengers"`
	// MeanDistance is the passenger-weighted mean trip distance.
	MeanDistance float64 `json:"mean_distance" yaml:"mean_distance"`
	MaxDistance  float64 `json:"max_distance" yaml:"max_distance"`
}

// summarize fills the row and distance figures of s from res.
func summarize(s *Summary, res *Result) {
	s.Batches = res.Batches
	s.FailedBatches = len(res.Failures)
	s.RowsRead = res.Stats.Rows
	s.RowsFiltered = res.Stats.Filtered
	s.RowsUnmatched = res.Stats.Unmatched
	s.RowsOutput = len(res.Rows)

	dists := make([]float64, 0, len(res.Rows))
	weights := make([]float64, 0, len(res.Rows))
	for _, r := range res.Rows {
		s.TotalPassengers += r.TotalPassengers
		if r.Distance > s.MaxDistance {
			s.MaxDistance = r.Distance
		}
		if r.TotalPassengers > 0 {
			dists = append(dists, r.Distance)
			weights = append(weights, r.TotalPassengers)
		}
	}
	if len(dists) > 0 {
		if m := stat.Mean(dists, weights); !math.IsNaN(m) && !math.IsInf(m, 0) {
			s.MeanDistance = m
		}
	}
}
