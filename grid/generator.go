package grid

import (
	"iter"

	"github.com/paulmach/orb"
)

// Points returns the lattice as a lazy, finite, restartable sequence of
// exactly Cols*Rows points in row-major order: row index outer (south to
// north), column index inner (west to east). The sequence is a pure
// function of the plan and the start values, so reruns are identical.
//
// ID = startID + row*Cols + col for every lattice position, including
// positions a polygon filter later drops.
func (p Plan) Points(startID, startLabel int64) iter.Seq[Point] {
	return func(yield func(Point) bool) {
		for j := 0; j < p.Rows; j++ {
			lat := p.Bound.Min[1] + float64(j)*p.Spacing
			for i := 0; i < p.Cols; i++ {
				lon := p.Bound.Min[0] + float64(i)*p.Spacing
				pt := Point{
					ID:    startID + int64(j)*int64(p.Cols) + int64(i),
					Label: startLabel,
					Coord: orb.Point{lon, lat},
				}
				if !yield(pt) {
					return
				}
			}
		}
	}
}
