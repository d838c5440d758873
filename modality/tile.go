// Package modality turns accepted grid points into dataset samples.
// The tms modality downloads and stitches slippy-map tiles around each
// point, the geojson modality records the points themselves.
package modality

import (
	"math"

	"github.com/paulmach/orb"
)

const tileSize = 256

// Tile addresses one slippy-map tile in XYZ scheme.
type Tile struct {
	X, Y, Z int
}

// TileAt returns the tile containing p at zoom z.
func TileAt(p orb.Point, z int) Tile {
	n := float64(int(1) << z)
	latRad := p.Lat() * math.Pi / 180
	x := int((p.Lon() + 180) / 360 * n)
	y := int((1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n)
	if x < 0 {
		x = 0
	}
	if max := int(n) - 1; x > max {
		x = max
	}
	if y < 0 {
		y = 0
	}
	if max := int(n) - 1; y > max {
		y = max
	}
	return Tile{X: x, Y: y, Z: z}
}

// Bound returns the geographic extent of the tile.
func (t Tile) Bound() orb.Bound {
	n := float64(int(1) << t.Z)
	west := float64(t.X)/n*360 - 180
	east := float64(t.X+1)/n*360 - 180
	north := tileLat(float64(t.Y), n)
	south := tileLat(float64(t.Y+1), n)
	return orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}
}

func tileLat(y, n float64) float64 {
	return math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180 / math.Pi
}

// TilesForBound lists the tiles covering b at zoom z, row by row from
// the northwest corner.
func TilesForBound(b orb.Bound, z int) []Tile {
	nw := TileAt(orb.Point{b.Min[0], b.Max[1]}, z)
	se := TileAt(orb.Point{b.Max[0], b.Min[1]}, z)

	var tiles []Tile
	for y := nw.Y; y <= se.Y; y++ {
		for x := nw.X; x <= se.X; x++ {
			tiles = append(tiles, Tile{X: x, Y: y, Z: z})
		}
	}
	return tiles
}

// BoundAround returns a square bound of size degrees centered on p.
func BoundAround(p orb.Point, size float64) orb.Bound {
	half := size / 2
	return orb.Bound{
		Min: orb.Point{p.Lon() - half, p.Lat() - half},
		Max: orb.Point{p.Lon() + half, p.Lat() + half},
	}
}

// DegreesPerTile is the geographic width of one tile at zoom z.
func DegreesPerTile(z int) float64 {
	return 360 / float64(int(1)<<z)
}

// BBoxSizeForResolution returns the square bound size in degrees that
// yields roughly targetPixels of imagery at zoom z. The inverse,
// pixelsForBBox, sizes the output image for a configured bound.
func BBoxSizeForResolution(targetPixels, z int) float64 {
	return float64(targetPixels) / tileSize * DegreesPerTile(z)
}

func pixelsForBBox(size float64, z int) int {
	return int(size / DegreesPerTile(z) * tileSize)
}
