package grid

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/qtree"
)

// Filter decides whether a candidate point is kept. Implementations are
// pure predicates and safe to call repeatedly with the same input.
type Filter interface {
	Contains(point orb.Point) bool
}

type acceptAll struct{}

func (acceptAll) Contains(orb.Point) bool { return true }

// AcceptAll is the identity filter used when no boundary is configured.
func AcceptAll() Filter { return acceptAll{} }

// PolygonFilter tests points against a boundary that may consist of
// several disjoint parts (mainland plus islands and exclaves). A point
// is inside when any part contains it. Part bounds are indexed in a
// quadtree so only parts whose bound covers the point are tested
// exactly.
//
// Boundary policy is inclusive: a point lying exactly on an edge is
// accepted.
type PolygonFilter struct {
	parts []orb.Polygon
	qt    qtree.QTree
}

// NewPolygonFilter builds a filter from mp, rejecting geometry that
// cannot be membership-tested. The filter itself never fails mid-run.
func NewPolygonFilter(mp orb.MultiPolygon) (*PolygonFilter, error) {
	if len(mp) == 0 {
		return nil, &GeometryError{Reason: "empty multipolygon"}
	}

	f := &PolygonFilter{}
	for _, poly := range mp {
		if len(poly) == 0 {
			return nil, &GeometryError{Reason: "polygon part without rings"}
		}
		if len(poly[0]) < 3 {
			return nil, &GeometryError{Reason: "outer ring with fewer than 3 vertices"}
		}
		bound := poly.Bound()
		f.qt.Insert(bound.Min, bound.Max, uint64(len(f.parts)))
		f.parts = append(f.parts, poly)
	}
	return f, nil
}

func (f *PolygonFilter) Contains(point orb.Point) bool {
	found := false
	f.qt.Search(point, point, func(_, _ [2]float64, data interface{}) bool {
		id := data.(uint64)
		if planar.PolygonContains(f.parts[id], point) {
			found = true
			return false
		}
		return true
	})
	return found
}
