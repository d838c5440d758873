package grid

import "github.com/paulmach/orb"

// Point is a single lattice sample. ID is unique within a run and
// assigned to every lattice position before filtering, so dispatched
// ids may have gaps. Label is the same for all points of a run.
type Point struct {
	ID    int64
	Label int64
	Coord orb.Point
}

func (p Point) Lon() float64 { return p.Coord[0] }

func (p Point) Lat() float64 { return p.Coord[1] }
