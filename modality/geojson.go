package modality

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/geodataset/gridmaker/grid"
	"github.com/geodataset/gridmaker/queue"
)

// GeoJSONConfig configures the point recording modality.
type GeoJSONConfig struct {
	Name      string
	OutputDir string
}

// GeoJSON records the accepted points themselves. Batch mode writes a
// single FeatureCollection, incremental mode appends line-delimited
// features so a crashed run keeps everything written so far.
type GeoJSON struct {
	cfg   GeoJSONConfig
	queue *queue.Queue
	log   *slog.Logger

	mu sync.Mutex
}

var _ grid.Consumer = (*GeoJSON)(nil)

func NewGeoJSON(cfg GeoJSONConfig, q *queue.Queue, log *slog.Logger) (*GeoJSON, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &GeoJSON{
		cfg:   cfg,
		queue: q,
		log:   log.With("modality", cfg.Name),
	}, nil
}

func feature(p grid.Point) *geojson.Feature {
	f := geojson.NewFeature(p.Coord)
	f.Properties["id"] = p.ID
	f.Properties["label"] = p.Label
	return f
}

// ConsumePoint implements grid.Consumer
func (m *GeoJSON) ConsumePoint(ctx context.Context, p grid.Point) error {
	body, err := json.Marshal(feature(p))
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(m.cfg.OutputDir, m.cfg.Name+".ndjson")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(body, '\n')); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return m.register(path)
}

// ConsumeBatch implements grid.Consumer
func (m *GeoJSON) ConsumeBatch(ctx context.Context, points []grid.Point) error {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		fc.Append(feature(p))
	}
	body, err := json.Marshal(fc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(m.cfg.OutputDir, m.cfg.Name+".geojson")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	m.log.Info("wrote feature collection", "path", path, "features", len(points))
	return m.register(path)
}

func (m *GeoJSON) register(path string) error {
	if m.queue == nil {
		return nil
	}
	_, err := m.queue.Add(path)
	return err
}
