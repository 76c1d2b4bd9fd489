// Package pipeline builds the origin-destination travel table: it streams the
// trip file in batches, joins each batch to the zone lookup, and accumulates
// OD rows while isolating failed batches.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/od-table/internal/distance"
	"github.com/sells-group/od-table/internal/fetcher"
	"github.com/sells-group/od-table/internal/trip"
	"github.com/sells-group/od-table/internal/zone"
)

// State is a run lifecycle stage.
type State string

// Run states, in order.
const (
	StateIdle             State = "idle"
	StateBuildingLookup   State = "building_lookup"
	StateStreamingBatches State = "streaming_batches"
	StateFinalized        State = "finalized"
)

// Options configures Run.
type Options struct {
	Zones     zone.Sources
	TripsPath string
	BatchSize int
	Workers   int
	Unit      distance.Unit
	Columns   trip.ColumnNames

	// OnState, if set, is called on every state transition.
	OnState func(State)
}

// Run builds the zone lookup, streams the trip file and returns the
// accumulated table. It fails only when the lookup cannot be built, the trip
// file cannot be opened or has no header, or ctx is cancelled. Errors inside
// a batch are reported in Result.Failures.
func Run(ctx context.Context, opts Options) (*Result, *zone.Lookup, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", runID))
	started := time.Now()

	setState := func(s State) {
		log.Debug("pipeline: state", zap.String("state", string(s)))
		if opts.OnState != nil {
			opts.OnState(s)
		}
	}
	setState(StateIdle)

	if opts.Unit == "" {
		opts.Unit = distance.Miles
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = fetcher.DefaultBatchSize
	}

	setState(StateBuildingLookup)
	lookup, zstats, err := zone.Load(ctx, opts.Zones)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(opts.TripsPath)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: open trips %s", opts.TripsPath)
	}
	defer f.Close() //nolint:errcheck

	setState(StateStreamingBatches)
	log.Info("pipeline: streaming trips",
		zap.String("path", opts.TripsPath),
		zap.Int("batch_size", opts.BatchSize),
		zap.Int("workers", opts.Workers),
		zap.String("unit", string(opts.Unit)),
	)

	batches, errCh := fetcher.StreamBatches(ctx, f, fetcher.BatchOptions{
		Size:   opts.BatchSize,
		Buffer: opts.Workers,
	})

	runner := &Runner{
		Lookup:  lookup,
		Unit:    opts.Unit,
		Columns: opts.Columns,
		Workers: opts.Workers,
	}
	res, procErr := runner.Process(ctx, batches)

	var streamErr error
	for e := range errCh {
		if e != nil && streamErr == nil {
			streamErr = e
		}
	}
	if procErr != nil {
		return nil, nil, procErr
	}
	if streamErr != nil {
		return nil, nil, eris.Wrap(streamErr, "pipeline: read trips")
	}

	finished := time.Now()
	res.Summary = Summary{
		RunID:       runID,
		StartedAt:   started,
		FinishedAt:  finished,
		DurationMs:  finished.Sub(started).Milliseconds(),
		Unit:        opts.Unit,
		EarthRadius: opts.Unit.Radius(),
		BatchSize:   opts.BatchSize,
		Workers:     opts.Workers,
		Zones:       lookup.Len(),
		ZoneBuild:   zstats,
	}
	summarize(&res.Summary, res)
	setState(StateFinalized)

	log.Info("pipeline: complete",
		zap.Int("batches", res.Summary.Batches),
		zap.Int("failed_batches", res.Summary.FailedBatches),
		zap.Int("rows_output", res.Summary.RowsOutput),
		zap.Int64("duration_ms", res.Summary.DurationMs),
	)
	return res, lookup, nil
}
