package grid_test

import (
	"errors"
	"testing"

	"github.com/geodataset/gridmaker/grid"
	"github.com/paulmach/orb"
)

type fakeSource struct {
	mp    orb.MultiPolygon
	bound orb.Bound
	err   error

	path, column, value string
}

func (s *fakeSource) Load(path, column, value string) (orb.MultiPolygon, orb.Bound, error) {
	s.path, s.column, s.value = path, column, value
	return s.mp, s.bound, s.err
}

func TestResolvePolygonWinsOverBBox(t *testing.T) {
	manual, err := grid.NewBound(0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	polyBound := orb.Bound{Min: orb.Point{-5, 40}, Max: orb.Point{10, 52}}
	src := &fakeSource{
		mp:    orb.MultiPolygon{polygonFromBounds(-5, 40, 10, 52)},
		bound: polyBound,
	}

	resolved, err := grid.Resolve(grid.Config{
		BBox:    &manual,
		Spacing: 0.1,
		Polygon: &grid.PolygonRef{Path: "countries.shp", FilterColumn: "NAME", FilterValue: "France"},
	}, src, nil)
	if err != nil {
		t.Fatal(err)
	}

	if resolved.Bound != polyBound {
		t.Fatalf("expected polygon bounds %v to win, got %v", polyBound, resolved.Bound)
	}
	if resolved.Polygon == nil {
		t.Fatal("expected polygon geometry to be retained for filtering")
	}
	if src.path != "countries.shp" || src.column != "NAME" || src.value != "France" {
		t.Fatalf("source called with %q %q %q", src.path, src.column, src.value)
	}
}

func TestResolveManualBBox(t *testing.T) {
	manual, err := grid.NewBound(0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	resolved, err := grid.Resolve(grid.Config{BBox: &manual, Spacing: 0.1}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Bound != manual {
		t.Fatalf("expected manual bbox %v, got %v", manual, resolved.Bound)
	}
	if resolved.Polygon != nil {
		t.Fatal("no polygon was configured")
	}

	f, err := resolved.Filter()
	if err != nil {
		t.Fatal(err)
	}
	if !f.Contains(orb.Point{55, 55}) {
		t.Fatal("expected identity filter without a polygon")
	}
}

func TestResolveConfigErrors(t *testing.T) {
	manual, err := grid.NewBound(0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	bad := orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{0, 0}}

	cases := []grid.Config{
		{Spacing: 0.1},
		{BBox: &manual, Spacing: 0},
		{BBox: &manual, Spacing: -1},
		{BBox: &bad, Spacing: 0.1},
		{Spacing: 0.1, Polygon: &grid.PolygonRef{Path: "countries.shp"}},
		{Spacing: 0.1, Polygon: &grid.PolygonRef{Path: "countries.shp", FilterColumn: "NAME"}},
	}
	for i, cfg := range cases {
		_, err := grid.Resolve(cfg, &fakeSource{}, nil)
		var cfgErr *grid.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("case %d: expected ConfigError, got %v", i, err)
		}
	}
}

func TestResolveSourceErrorPropagates(t *testing.T) {
	boom := errors.New("no such feature")
	src := &fakeSource{err: boom}

	_, err := grid.Resolve(grid.Config{
		Spacing: 0.1,
		Polygon: &grid.PolygonRef{Path: "countries.shp", FilterColumn: "NAME", FilterValue: "Atlantis"},
	}, src, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error to propagate, got %v", err)
	}
}
