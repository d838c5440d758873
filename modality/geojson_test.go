package modality_test

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/geodataset/gridmaker/grid"
	"github.com/geodataset/gridmaker/modality"
)

func TestGeoJSONBatch(t *testing.T) {
	dir := t.TempDir()
	m, err := modality.NewGeoJSON(modality.GeoJSONConfig{Name: "points", OutputDir: dir}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	points := []grid.Point{
		{ID: 100, Label: 3, Coord: orb.Point{0, 0}},
		{ID: 102, Label: 3, Coord: orb.Point{0.02, 0}},
	}
	if err := m.ConsumeBatch(context.Background(), points); err != nil {
		t.Fatal(err)
	}

	body, err := os.ReadFile(filepath.Join(dir, "points.geojson"))
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}
	if id := fc.Features[0].Properties["id"]; id != float64(100) {
		t.Fatalf("expected id property 100, got %v", id)
	}
	if pt, ok := fc.Features[1].Geometry.(orb.Point); !ok || pt != (orb.Point{0.02, 0}) {
		t.Fatalf("unexpected geometry %v", fc.Features[1].Geometry)
	}
}

func TestGeoJSONIncrementalAppends(t *testing.T) {
	dir := t.TempDir()
	q := newTestQueue(t)
	m, err := modality.NewGeoJSON(modality.GeoJSONConfig{Name: "points", OutputDir: dir}, q, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, p := range []grid.Point{
		{ID: 0, Label: 1, Coord: orb.Point{1, 2}},
		{ID: 1, Label: 1, Coord: orb.Point{3, 4}},
	} {
		if err := m.ConsumePoint(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "points.ndjson"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if _, err := geojson.UnmarshalFeature(sc.Bytes()); err != nil {
			t.Fatalf("line %d is not a feature: %v", lines, err)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 feature lines, got %d", lines)
	}

	// The single output file is registered once.
	n, err := q.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 queued output, got %d", n)
	}
}
