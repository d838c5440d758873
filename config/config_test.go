package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/geodataset/gridmaker/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
grid:
  bbox: [28.8, 40.9, 29.3, 41.3]
  spacing: 0.01
  start_id: 100
  start_label: 3
  incremental: true
modalities:
  - name: satellite
    type: tms
    bbox_size: 0.001
    zoom_level: 18
    tile_server: google
    output_dir: out/satellite
queue:
  path: queue.db
  max_unprocessed: 5
metrics:
  listen: :9090
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Grid.StartID != 100 || cfg.Grid.StartLabel != 3 {
		t.Fatalf("unexpected grid config: %+v", cfg.Grid)
	}
	if !cfg.Grid.Incremental {
		t.Fatal("expected incremental mode")
	}
	if len(cfg.Modalities) != 1 || cfg.Modalities[0].Type != "tms" {
		t.Fatalf("unexpected modalities: %+v", cfg.Modalities)
	}
	if cfg.Queue.MaxUnprocessed != 5 {
		t.Fatalf("unexpected queue config: %+v", cfg.Queue)
	}

	gc, err := cfg.ToGrid()
	if err != nil {
		t.Fatal(err)
	}
	if gc.BBox == nil || gc.BBox.Min[0] != 28.8 || gc.BBox.Max[1] != 41.3 {
		t.Fatalf("unexpected bound: %+v", gc.BBox)
	}
}

func TestLoadPolygonOnly(t *testing.T) {
	path := writeConfig(t, `
grid:
  spacing: 0.02
  country_polygon_path: countries.shp
  country_filter_column: NAME
  country_filter_value: Turkey
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	gc, err := cfg.ToGrid()
	if err != nil {
		t.Fatal(err)
	}
	if gc.BBox != nil {
		t.Fatal("expected no manual bbox")
	}
	if gc.Polygon == nil || gc.Polygon.FilterValue != "Turkey" {
		t.Fatalf("unexpected polygon ref: %+v", gc.Polygon)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"no bbox and no polygon",
			"grid:\n  spacing: 0.01\n",
			"either grid.bbox or a country polygon filter",
		},
		{
			"short bbox",
			"grid:\n  spacing: 0.01\n  bbox: [1, 2, 3]\n",
			"needs 4 values",
		},
		{
			"partial polygon filter",
			"grid:\n  spacing: 0.01\n  country_polygon_path: c.shp\n",
			"country polygon filtering needs",
		},
		{
			"negative spacing",
			"grid:\n  spacing: -1\n  bbox: [0, 0, 1, 1]\n",
			"grid.spacing must be positive",
		},
		{
			"modality without output dir",
			"grid:\n  spacing: 0.01\n  bbox: [0, 0, 1, 1]\nmodalities:\n  - name: sat\n    type: tms\n",
			"output_dir is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, "grid:\n  spacing: 0.01\n  bbox: [0, 0, 1, 1]\n")
	t.Setenv("GRIDMAKER_GRID_SPACING", "0.5")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Grid.Spacing != 0.5 {
		t.Fatalf("expected env override to win, got %v", cfg.Grid.Spacing)
	}
}
