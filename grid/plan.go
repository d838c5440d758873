package grid

import (
	"math"

	"github.com/paulmach/orb"
)

// Degree-to-distance conversion for the advisory metrics. Constant on
// both axes, no cosine(latitude) scaling; never used for placement.
const metersPerDegree = 111_000.0

// NewBound validates a manual bounding box given as WGS84 degrees,
// longitude first.
func NewBound(minX, minY, maxX, maxY float64) (orb.Bound, error) {
	b := orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
	if err := validBound(b); err != nil {
		return orb.Bound{}, err
	}
	return b, nil
}

func validBound(b orb.Bound) error {
	if b.Min[0] >= b.Max[0] || b.Min[1] >= b.Max[1] {
		return configErrorf("invalid bbox [%v %v %v %v]: min must be less than max on both axes",
			b.Min[0], b.Min[1], b.Max[0], b.Max[1])
	}
	return nil
}

// Plan is the derived lattice layout for one run. It is computed once
// from the resolved extent and spacing and never mutated.
type Plan struct {
	Bound   orb.Bound
	Spacing float64
	Cols    int
	Rows    int
}

// NewPlan computes lattice dimensions over bound with the given spacing
// in degrees. Cols and Rows are ceil(extent/spacing); the last row and
// column therefore stay strictly inside the max edges.
func NewPlan(bound orb.Bound, spacing float64) (Plan, error) {
	if spacing <= 0 {
		return Plan{}, configErrorf("spacing must be positive, got %v", spacing)
	}
	if err := validBound(bound); err != nil {
		return Plan{}, err
	}
	return Plan{
		Bound:   bound,
		Spacing: spacing,
		Cols:    int(math.Ceil((bound.Max[0] - bound.Min[0]) / spacing)),
		Rows:    int(math.Ceil((bound.Max[1] - bound.Min[1]) / spacing)),
	}, nil
}

// Candidates is the pre-filter point count, an upper bound on what a
// filtered run dispatches.
func (p Plan) Candidates() int64 {
	return int64(p.Cols) * int64(p.Rows)
}

func (p Plan) WidthKm() float64 {
	return (p.Bound.Max[0] - p.Bound.Min[0]) * metersPerDegree / 1000
}

func (p Plan) HeightKm() float64 {
	return (p.Bound.Max[1] - p.Bound.Min[1]) * metersPerDegree / 1000
}

func (p Plan) AreaKm2() float64 {
	return p.WidthKm() * p.HeightKm()
}

func (p Plan) SpacingMeters() float64 {
	return p.Spacing * metersPerDegree
}
