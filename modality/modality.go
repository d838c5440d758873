package modality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/geodataset/gridmaker/grid"
	"github.com/geodataset/gridmaker/queue"
)

// Config is one entry of the modalities list.
type Config struct {
	Name       string  `mapstructure:"name"`
	Type       string  `mapstructure:"type"`
	BBoxSize   float64 `mapstructure:"bbox_size"`
	ZoomLevel  int     `mapstructure:"zoom_level"`
	TileServer string  `mapstructure:"tile_server"`
	OutputDir  string  `mapstructure:"output_dir"`
	Workers    int     `mapstructure:"workers"`
}

// New builds the consumer for one modality config entry.
func New(cfg Config, q *queue.Queue, log *slog.Logger) (grid.Consumer, error) {
	switch strings.ToLower(cfg.Type) {
	case "tms":
		return NewTMS(TMSConfig{
			Name:       cfg.Name,
			BBoxSize:   cfg.BBoxSize,
			ZoomLevel:  cfg.ZoomLevel,
			TileServer: cfg.TileServer,
			OutputDir:  cfg.OutputDir,
			Workers:    cfg.Workers,
		}, q, log)
	case "geojson":
		return NewGeoJSON(GeoJSONConfig{
			Name:      cfg.Name,
			OutputDir: cfg.OutputDir,
		}, q, log)
	default:
		return nil, fmt.Errorf("unknown modality type %q, supported: tms, geojson", cfg.Type)
	}
}

// Multi dispatches every point to several modalities in order.
type Multi []grid.Consumer

var _ grid.Consumer = Multi(nil)

// ConsumePoint implements grid.Consumer
func (m Multi) ConsumePoint(ctx context.Context, p grid.Point) error {
	for _, c := range m {
		if err := c.ConsumePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// ConsumeBatch implements grid.Consumer
func (m Multi) ConsumeBatch(ctx context.Context, points []grid.Point) error {
	for _, c := range m {
		if err := c.ConsumeBatch(ctx, points); err != nil {
			return err
		}
	}
	return nil
}
