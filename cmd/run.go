package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/od-table/internal/config"
	"github.com/sells-group/od-table/internal/distance"
	"github.com/sells-group/od-table/internal/export"
	"github.com/sells-group/od-table/internal/pipeline"
	"github.com/sells-group/od-table/internal/trip"
	"github.com/sells-group/od-table/internal/zone"
)

var (
	runTrips      string
	runZones      string
	runPopulation string
	runOutput     string
	runReport     string
	runZonesOut   string
	runBatchSize  int
	runWorkers    int
	runUnit       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the OD table from trip, zone and population inputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyRunFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		opts, err := runOptions(cfg)
		if err != nil {
			return err
		}

		res, lookup, err := pipeline.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "od table run")
		}

		if err := export.WriteODTable(cfg.Output.Path, res.Rows, opts.Unit); err != nil {
			return err
		}
		zap.L().Info("od table written", zap.String("path", cfg.Output.Path), zap.Int("rows", len(res.Rows)))

		if cfg.Output.ReportPath != "" {
			if err := export.WriteReport(cfg.Output.ReportPath, res); err != nil {
				return err
			}
		}
		if cfg.Output.ZonesPath != "" {
			if err := export.WriteZones(cfg.Output.ZonesPath, lookup); err != nil {
				return err
			}
		}

		_, err = fmt.Fprint(cmd.OutOrStdout(), pipeline.FormatReport(res))
		return err
	},
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("trips") {
		c.Input.TripsPath = runTrips
	}
	if flags.Changed("zones") {
		c.Input.ZonesPath = runZones
	}
	if flags.Changed("population") {
		c.Input.PopulationPath = runPopulation
	}
	if flags.Changed("output") {
		c.Output.Path = runOutput
	}
	if flags.Changed("report") {
		c.Output.ReportPath = runReport
	}
	if flags.Changed("zones-out") {
		c.Output.ZonesPath = runZonesOut
	}
	if flags.Changed("batch-size") {
		c.Pipeline.BatchSize = runBatchSize
	}
	if flags.Changed("workers") {
		c.Pipeline.Workers = runWorkers
	}
	if flags.Changed("unit") {
		c.Pipeline.DistanceUnit = runUnit
	}
}

// runOptions maps a validated configuration onto pipeline options.
func runOptions(c *config.Config) (pipeline.Options, error) {
	unit, err := distance.ParseUnit(c.Pipeline.DistanceUnit)
	if err != nil {
		return pipeline.Options{}, err
	}

	return pipeline.Options{
		Zones: zone.Sources{
			ZonesPath:      c.Input.ZonesPath,
			PopulationPath: c.Input.PopulationPath,
			Shapefile: zone.ShapefileOptions{
				IDField:   c.Zones.IDField,
				NameField: c.Zones.NameField,
				TempDir:   c.Pipeline.TempDir,
			},
			Population: zone.PopulationOptions{
				IDColumn:         c.Population.IDColumn,
				NameColumn:       c.Population.NameColumn,
				PopulationColumn: c.Population.ResolvedPopulationColumn(),
				Encoding:         c.Population.Encoding,
				Sheet:            c.Population.Sheet,
			},
			Build: zone.BuildOptions{MSAOnly: c.Zones.MSAOnly},
		},
		TripsPath: c.Input.TripsPath,
		BatchSize: c.Pipeline.BatchSize,
		Workers:   c.Pipeline.Workers,
		Unit:      unit,
		Columns: trip.ColumnNames{
			Origin:      c.Trips.OriginColumn,
			Destination: c.Trips.DestinationColumn,
			Total:       c.Trips.TotalColumn,
			Air:         c.Trips.AirColumn,
			Vehicle:     c.Trips.VehicleColumn,
		},
	}, nil
}

func init() {
	runCmd.Flags().StringVar(&runTrips, "trips", "", "trip CSV path (overrides input.trips_path)")
	runCmd.Flags().StringVar(&runZones, "zones", "", "zone shapefile or zip path (overrides input.zones_path)")
	runCmd.Flags().StringVar(&runPopulation, "population", "", "population CSV or XLSX path (overrides input.population_path)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "OD table output path (overrides output.path)")
	runCmd.Flags().StringVar(&runReport, "report", "", "run report path, .json or .yaml")
	runCmd.Flags().StringVar(&runZonesOut, "zones-out", "", "write the zone lookup with centroids to this CSV")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 50000, "trip records per batch")
	runCmd.Flags().IntVar(&runWorkers, "workers", 1, "batches processed concurrently")
	runCmd.Flags().StringVar(&runUnit, "unit", "miles", "distance unit: miles or km")
	rootCmd.AddCommand(runCmd)
}
