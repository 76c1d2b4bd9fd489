package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/od-table/internal/distance"
	"github.com/sells-group/od-table/internal/fetcher"
	"github.com/sells-group/od-table/internal/trip"
	"github.com/sells-group/od-table/internal/zone"
)

const progressInterval = 10 * time.Second

// Runner turns trip batches into OD rows against a fixed zone lookup.
type Runner struct {
	Lookup  *zone.Lookup
	Unit    distance.Unit
	Columns trip.ColumnNames
	Workers int

	// convertFn replaces convert in tests.
	convertFn func(fetcher.Batch) ([]ODRow, trip.Stats, error)
}

// ProcessBatch joins one batch and computes distances for its rows. Any
// error or panic while doing so becomes a failed outcome; nothing escapes.
func (r *Runner) ProcessBatch(b fetcher.Batch) BatchOutcome {
	if b.Err != nil {
		o := Failed(b.Index, b.Err)
		o.Stats.Rows = len(b.Rows)
		return o
	}

	var (
		rows  []ODRow
		stats trip.Stats
		err   error
	)
	convert := r.convert
	if r.convertFn != nil {
		convert = r.convertFn
	}
	recovered := panics.Try(func() {
		rows, stats, err = convert(b)
	})
	if recovered != nil {
		o := failedAs(b.Index, KindPanic, recovered.AsError())
		o.Stats.Rows = len(b.Rows)
		return o
	}
	if err != nil {
		o := Failed(b.Index, err)
		o.Stats.Rows = len(b.Rows)
		return o
	}
	return Succeeded(b.Index, rows, stats)
}

func (r *Runner) convert(b fetcher.Batch) ([]ODRow, trip.Stats, error) {
	if r.Lookup == nil {
		return nil, trip.Stats{}, eris.New("pipeline: no zone lookup")
	}

	joined, stats, err := trip.Join(b.Header, b.Rows, r.Lookup, r.Columns)
	if err != nil {
		return nil, stats, eris.Wrapf(err, "pipeline: batch %d", b.Index)
	}

	rows := make([]ODRow, len(joined))
	for i, j := range joined {
		rows[i] = ODRow{
			OriginZoneID:          j.OriginID,
			OriginZoneName:        j.Origin.Name,
			OriginPopulation:      j.Origin.Population,
			DestinationZoneID:     j.DestinationID,
			DestinationZoneName:   j.Destination.Name,
			DestinationPopulation: j.Destination.Population,
			Distance:              distance.Between(j.Origin.Centroid(), j.Destination.Centroid(), r.Unit),
			TotalPassengers:       j.TotalTrips,
			PassengersByAir:       j.Air,
			PassengersByVehicle:   j.Vehicle,
		}
	}
	return rows, stats, nil
}

// Process consumes batches until the channel closes, processing up to
// Workers batches at once. Batch failures are collected in the result. The
// only error returned is cancellation of ctx.
func (r *Runner) Process(ctx context.Context, batches <-chan fetcher.Batch) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	acc := &Accumulator{}
	progress := rate.Sometimes{First: 1, Interval: progressInterval}

	g := new(errgroup.Group)
	g.SetLimit(workers)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case b, ok := <-batches:
			if !ok {
				break loop
			}
			g.Go(func() error {
				o := r.ProcessBatch(b)
				if !o.OK() {
					log.Warn("pipeline: batch failed",
						zap.Int("batch", o.Index),
						zap.String("kind", string(o.Failure.Kind)),
						zap.String("error", o.Failure.Message),
					)
				}
				acc.Add(o)
				progress.Do(func() {
					log.Info("pipeline: progress",
						zap.Int("batches_done", acc.Len()),
						zap.Int("last_batch", o.Index),
					)
				})
				return nil
			})
		}
	}

	_ = g.Wait() // workers never return errors

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled")
	}
	return acc.Result(), nil
}
