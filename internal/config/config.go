package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/od-table/internal/distance"
)

// Config holds the full application configuration.
type Config struct {
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Population PopulationConfig `yaml:"population" mapstructure:"population"`
	Zones      ZonesConfig      `yaml:"zones" mapstructure:"zones"`
	Trips      TripsConfig      `yaml:"trips" mapstructure:"trips"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// InputConfig holds the paths of the three input sources.
type InputConfig struct {
	TripsPath      string `yaml:"trips_path" mapstructure:"trips_path"`
	ZonesPath      string `yaml:"zones_path" mapstructure:"zones_path"`
	PopulationPath string `yaml:"population_path" mapstructure:"population_path"`
}

// PopulationConfig describes the population estimates table.
type PopulationConfig struct {
	IDColumn         string `yaml:"id_column" mapstructure:"id_column"`
	NameColumn       string `yaml:"name_column" mapstructure:"name_column"`
	PopulationColumn string `yaml:"population_column" mapstructure:"population_column"`
	Year             int    `yaml:"year" mapstructure:"year"`
	Encoding         string `yaml:"encoding" mapstructure:"encoding"`
	Sheet            string `yaml:"sheet" mapstructure:"sheet"`
}

// ResolvedPopulationColumn returns the population column, defaulting to the
// Census POPESTIMATE<year> naming when unset.
func (p PopulationConfig) ResolvedPopulationColumn() string {
	if p.PopulationColumn != "" {
		return p.PopulationColumn
	}
	return fmt.Sprintf("POPESTIMATE%d", p.Year)
}

// ZonesConfig describes the zone polygon shapefile.
type ZonesConfig struct {
	IDField   string `yaml:"id_field" mapstructure:"id_field"`
	NameField string `yaml:"name_field" mapstructure:"name_field"`
	MSAOnly   bool   `yaml:"msa_only" mapstructure:"msa_only"`
}

// TripsConfig names the trip CSV columns.
type TripsConfig struct {
	OriginColumn      string `yaml:"origin_column" mapstructure:"origin_column"`
	DestinationColumn string `yaml:"destination_column" mapstructure:"destination_column"`
	TotalColumn       string `yaml:"total_column" mapstructure:"total_column"`
	AirColumn         string `yaml:"air_column" mapstructure:"air_column"`
	VehicleColumn     string `yaml:"vehicle_column" mapstructure:"vehicle_column"`
}

// PipelineConfig configures batch processing.
type PipelineConfig struct {
	BatchSize    int    `yaml:"batch_size" mapstructure:"batch_size"`
	Workers      int    `yaml:"workers" mapstructure:"workers"`
	DistanceUnit string `yaml:"distance_unit" mapstructure:"distance_unit"`
	TempDir      string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// OutputConfig configures the files written at the end of a run.
type OutputConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	ReportPath string `yaml:"report_path" mapstructure:"report_path"`
	ZonesPath  string `yaml:"zones_path" mapstructure:"zones_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ODTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.trips_path", "")
	v.SetDefault("input.zones_path", "")
	v.SetDefault("input.population_path", "")
	v.SetDefault("population.id_column", "CBSA")
	v.SetDefault("population.name_column", "NAME")
	v.SetDefault("population.population_column", "")
	v.SetDefault("population.year", 2022)
	v.SetDefault("population.encoding", "utf-8")
	v.SetDefault("population.sheet", "")
	v.SetDefault("zones.id_field", "zone_id")
	v.SetDefault("zones.name_field", "zone_name")
	v.SetDefault("zones.msa_only", true)
	v.SetDefault("trips.origin_column", "origin_zone_id")
	v.SetDefault("trips.destination_column", "destination_zone_id")
	v.SetDefault("trips.total_column", "annual_total_trips")
	v.SetDefault("trips.air_column", "mode_air")
	v.SetDefault("trips.vehicle_column", "mode_vehicle")
	v.SetDefault("pipeline.batch_size", 50000)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.distance_unit", "miles")
	v.SetDefault("pipeline.temp_dir", "/tmp/od-table")
	v.SetDefault("output.path", "Master_OD_Table_Final.csv")
	v.SetDefault("output.report_path", "")
	v.SetDefault("output.zones_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration can drive a pipeline run. All
// problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	if c.Input.TripsPath == "" {
		problems = append(problems, "input.trips_path is required")
	}
	if c.Input.ZonesPath == "" {
		problems = append(problems, "input.zones_path is required")
	}
	if c.Input.PopulationPath == "" {
		problems = append(problems, "input.population_path is required")
	}
	if c.Output.Path == "" {
		problems = append(problems, "output.path is required")
	}
	if c.Pipeline.BatchSize < 1 {
		problems = append(problems, "pipeline.batch_size must be at least 1")
	}
	if c.Pipeline.Workers < 1 {
		problems = append(problems, "pipeline.workers must be at least 1")
	}
	if _, err := distance.ParseUnit(c.Pipeline.DistanceUnit); err != nil {
		problems = append(problems, fmt.Sprintf("pipeline.distance_unit %q is not miles or km", c.Pipeline.DistanceUnit))
	}
	if c.Population.IDColumn == "" || c.Population.NameColumn == "" {
		problems = append(problems, "population.id_column and population.name_column are required")
	}
	if c.Population.PopulationColumn == "" && c.Population.Year == 0 {
		problems = append(problems, "population.population_column or population.year is required")
	}
	if c.Zones.IDField == "" {
		problems = append(problems, "zones.id_field is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
