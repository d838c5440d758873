package grid

import (
	"log/slog"

	"github.com/paulmach/orb"
)

// PolygonSource loads a boundary geometry and its extent, both in WGS84
// degrees. Implementations reproject when the source data uses another
// coordinate system.
type PolygonSource interface {
	Load(path, column, value string) (orb.MultiPolygon, orb.Bound, error)
}

// PolygonRef points at one boundary feature inside a polygon dataset.
type PolygonRef struct {
	Path         string
	FilterColumn string
	FilterValue  string
}

// Config carries the grid parameters of one run.
type Config struct {
	BBox        *orb.Bound
	Spacing     float64
	StartID     int64
	StartLabel  int64
	Incremental bool
	Polygon     *PolygonRef
}

// Resolved is the effective extent of a run, plus the boundary geometry
// when one is configured. The geometry is loaded once and read-only.
type Resolved struct {
	Bound   orb.Bound
	Polygon orb.MultiPolygon
}

// Filter returns the membership filter for the resolved run.
func (r Resolved) Filter() (Filter, error) {
	if r.Polygon == nil {
		return AcceptAll(), nil
	}
	return NewPolygonFilter(r.Polygon)
}

// Resolve determines the effective bounding extent. When a polygon is
// configured its bounds always win over a manually supplied bbox: a
// manual box risks clipping islands, the polygon bounds guarantee full
// territorial coverage.
func Resolve(cfg Config, src PolygonSource, log *slog.Logger) (Resolved, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Spacing <= 0 {
		return Resolved{}, configErrorf("spacing must be positive, got %v", cfg.Spacing)
	}

	if cfg.Polygon != nil {
		ref := cfg.Polygon
		if ref.Path == "" || ref.FilterColumn == "" || ref.FilterValue == "" {
			return Resolved{}, configErrorf("country polygon needs path, filter column and filter value")
		}
		mp, bound, err := src.Load(ref.Path, ref.FilterColumn, ref.FilterValue)
		if err != nil {
			return Resolved{}, err
		}
		if cfg.BBox != nil {
			log.Info("ignoring configured bbox in favor of polygon bounds",
				"bbox", *cfg.BBox, "polygon_bounds", bound)
		}
		if err := validBound(bound); err != nil {
			return Resolved{}, &GeometryError{Reason: "polygon has a degenerate bounding extent"}
		}
		return Resolved{Bound: bound, Polygon: mp}, nil
	}

	if cfg.BBox == nil {
		return Resolved{}, configErrorf("either bbox or country polygon must be configured")
	}
	if err := validBound(*cfg.BBox); err != nil {
		return Resolved{}, err
	}
	return Resolved{Bound: *cfg.BBox}, nil
}
