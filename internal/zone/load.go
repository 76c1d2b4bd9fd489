package zone

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SetupError reports that the zone lookup could not be built. It is fatal to
// a run: no trip batch is processed after it.
type SetupError struct {
	Stage string
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("zone setup (%s): %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// IsSetupError returns true if err (or any error in its chain) is a SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}

// Sources names the geometry and population inputs of the lookup.
type Sources struct {
	ZonesPath      string
	PopulationPath string
	Shapefile      ShapefileOptions
	Population     PopulationOptions
	Build          BuildOptions
}

// Load reads both sources and builds the lookup. Every failure is returned
// as a *SetupError.
func Load(ctx context.Context, src Sources) (*Lookup, BuildStats, error) {
	log := zap.L().With(zap.String("component", "zone.load"))

	pops, err := ReadPopulation(src.PopulationPath, src.Population)
	if err != nil {
		return nil, BuildStats{}, &SetupError{Stage: "population", Err: err}
	}
	log.Info("population table read", zap.String("path", src.PopulationPath), zap.Int("rows", len(pops)))

	if err := ctx.Err(); err != nil {
		return nil, BuildStats{}, &SetupError{Stage: "population", Err: err}
	}

	geoms, err := ReadShapefile(src.ZonesPath, src.Shapefile)
	if err != nil {
		return nil, BuildStats{}, &SetupError{Stage: "geometry", Err: err}
	}
	log.Info("zone shapefile read", zap.String("path", src.ZonesPath), zap.Int("features", len(geoms)))

	if err := ctx.Err(); err != nil {
		return nil, BuildStats{}, &SetupError{Stage: "geometry", Err: err}
	}

	lookup, stats := Build(geoms, pops, src.Build)
	log.Info("zone lookup built",
		zap.Int("records", stats.Records),
		zap.Int("non_msa", stats.NonMSA),
		zap.Int("no_centroid", stats.NoCentroid),
		zap.Int("unmatched_population", stats.Unmatched),
		zap.Int("duplicates", stats.Duplicates),
	)
	if stats.Records == 0 {
		log.Warn("zone lookup is empty; every trip will be dropped")
	}

	return lookup, stats, nil
}
