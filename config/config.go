// Package config loads the gridmaker configuration from a yaml file
// and GRIDMAKER_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/geodataset/gridmaker/grid"
	"github.com/geodataset/gridmaker/modality"
)

// Config holds all application configuration.
type Config struct {
	Grid       GridConfig        `mapstructure:"grid"`
	Modalities []modality.Config `mapstructure:"modalities"`
	Queue      QueueConfig       `mapstructure:"queue"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
}

type GridConfig struct {
	// BBox is minx, miny, maxx, maxy in degrees. Optional when a
	// country polygon is configured.
	BBox        []float64 `mapstructure:"bbox"`
	Spacing     float64   `mapstructure:"spacing"`
	StartID     int64     `mapstructure:"start_id"`
	StartLabel  int64     `mapstructure:"start_label"`
	Incremental bool      `mapstructure:"incremental"`

	CountryPolygonPath  string `mapstructure:"country_polygon_path"`
	CountryFilterColumn string `mapstructure:"country_filter_column"`
	CountryFilterValue  string `mapstructure:"country_filter_value"`
}

type QueueConfig struct {
	// Path to the on-disk queue database. Empty keeps the queue in
	// memory only.
	Path           string `mapstructure:"path"`
	MaxUnprocessed int    `mapstructure:"max_unprocessed"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// Load reads configuration from path (or config.yaml in the working
// directory when path is empty) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("grid.spacing", 0.01)
	v.SetDefault("grid.start_id", 0)
	v.SetDefault("grid.start_label", 0)
	v.SetDefault("grid.incremental", false)
	v.SetDefault("queue.max_unprocessed", 10)
	v.SetDefault("metrics.listen", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		_ = v.ReadInConfig() // OK if missing
	}

	// Environment variables: GRIDMAKER_GRID_SPACING → grid.spacing
	v.SetEnvPrefix("GRIDMAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Grid.Spacing <= 0 {
		errs = append(errs, fmt.Sprintf("grid.spacing must be positive, got %v", c.Grid.Spacing))
	}
	if n := len(c.Grid.BBox); n != 0 && n != 4 {
		errs = append(errs, fmt.Sprintf("grid.bbox needs 4 values (minx miny maxx maxy), got %d", n))
	}
	hasPolygon := c.Grid.CountryPolygonPath != "" ||
		c.Grid.CountryFilterColumn != "" || c.Grid.CountryFilterValue != ""
	if hasPolygon {
		if c.Grid.CountryPolygonPath == "" || c.Grid.CountryFilterColumn == "" || c.Grid.CountryFilterValue == "" {
			errs = append(errs, "country polygon filtering needs grid.country_polygon_path, grid.country_filter_column and grid.country_filter_value")
		}
	} else if len(c.Grid.BBox) == 0 {
		errs = append(errs, "either grid.bbox or a country polygon filter is required")
	}

	names := map[string]struct{}{}
	for i, m := range c.Modalities {
		if m.Name == "" {
			errs = append(errs, fmt.Sprintf("modalities[%d].name is required", i))
			continue
		}
		if _, dup := names[m.Name]; dup {
			errs = append(errs, fmt.Sprintf("duplicate modality name %q", m.Name))
		}
		names[m.Name] = struct{}{}
		if m.OutputDir == "" {
			errs = append(errs, fmt.Sprintf("modalities[%d].output_dir is required", i))
		}
	}

	if c.Queue.MaxUnprocessed < 0 {
		errs = append(errs, "queue.max_unprocessed must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ToGrid converts the grid section to the core configuration.
func (c *Config) ToGrid() (grid.Config, error) {
	out := grid.Config{
		Spacing:     c.Grid.Spacing,
		StartID:     c.Grid.StartID,
		StartLabel:  c.Grid.StartLabel,
		Incremental: c.Grid.Incremental,
	}
	if len(c.Grid.BBox) == 4 {
		b, err := grid.NewBound(c.Grid.BBox[0], c.Grid.BBox[1], c.Grid.BBox[2], c.Grid.BBox[3])
		if err != nil {
			return grid.Config{}, err
		}
		out.BBox = &b
	}
	if c.Grid.CountryPolygonPath != "" {
		out.Polygon = &grid.PolygonRef{
			Path:         c.Grid.CountryPolygonPath,
			FilterColumn: c.Grid.CountryFilterColumn,
			FilterValue:  c.Grid.CountryFilterValue,
		}
	}
	return out, nil
}
