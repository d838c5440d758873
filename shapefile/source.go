// Package shapefile loads country boundary polygons from ESRI
// shapefiles, filtered by an attribute column, and hands them to the
// grid core as WGS84 geometry.
package shapefile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"

	"github.com/geodataset/gridmaker/grid"
)

// ErrFeatureNotFound is returned when no feature matches the configured
// filter column and value.
var ErrFeatureNotFound = errors.New("no matching feature in shapefile")

const wgs84 = "+proj=longlat +datum=WGS84 +no_defs"

// maxReportedValues limits the attribute values listed in a
// not-found error.
const maxReportedValues = 10

type Source struct {
	log *slog.Logger
}

var _ grid.PolygonSource = (*Source)(nil)

func NewSource(log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{log: log}
}

// Load reads the shapefile at path and returns the geometry of the
// feature whose column attribute equals value, reprojected to WGS84,
// together with its bounding extent. Matching prefers an exact value
// and falls back to case-insensitive. Multiple matches are unioned into
// one multi-part geometry.
func (s *Source) Load(path, column, value string) (orb.MultiPolygon, orb.Bound, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, orb.Bound{}, fmt.Errorf("open shapefile: %w", err)
	}
	defer d.Close()

	if err := checkColumn(d, column); err != nil {
		return nil, orb.Bound{}, err
	}

	trans, err := s.transformToWGS84(d, path)
	if err != nil {
		return nil, orb.Bound{}, err
	}

	var exact, folded []geom.Geom
	var available []string
	seen := map[string]struct{}{}
	for {
		g, fields, more := d.DecodeRowFields(column)
		if !more {
			break
		}
		v := strings.TrimSpace(fields[column])
		if _, ok := seen[v]; !ok && len(available) < maxReportedValues {
			seen[v] = struct{}{}
			available = append(available, v)
		}
		switch {
		case v == value:
			exact = append(exact, g)
		case strings.EqualFold(v, value):
			folded = append(folded, g)
		}
	}
	if err := d.Error(); err != nil {
		return nil, orb.Bound{}, fmt.Errorf("decode shapefile: %w", err)
	}

	matches := exact
	if len(matches) == 0 {
		matches = folded
	}
	if len(matches) == 0 {
		return nil, orb.Bound{}, fmt.Errorf("%w: %s=%q (values found: %s)",
			ErrFeatureNotFound, column, value, strings.Join(available, ", "))
	}
	if len(matches) > 1 {
		s.log.Warn("multiple features match filter, using union of all geometries",
			"column", column, "value", value, "count", len(matches))
	}

	var mp orb.MultiPolygon
	for _, g := range matches {
		if trans != nil {
			g, err = g.Transform(trans)
			if err != nil {
				return nil, orb.Bound{}, &grid.GeometryError{
					Reason: fmt.Sprintf("reprojecting %q to WGS84: %v", path, err),
				}
			}
		}
		parts, err := toOrb(g)
		if err != nil {
			return nil, orb.Bound{}, err
		}
		mp = append(mp, parts...)
	}

	s.log.Info("loaded country polygon",
		"path", path, "value", value, "features", len(matches), "parts", len(mp))
	return mp, mp.Bound(), nil
}

func checkColumn(d *shp.Decoder, column string) error {
	names := make([]string, 0, len(d.Fields()))
	found := false
	for _, f := range d.Fields() {
		name := f.String()
		names = append(names, name)
		if strings.EqualFold(name, column) {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("column %q not found in shapefile, available columns: %s",
			column, strings.Join(names, ", "))
	}
	return nil
}

// transformToWGS84 returns nil when no reprojection is needed. A
// shapefile without a .prj is assumed to already be WGS84.
func (s *Source) transformToWGS84(d *shp.Decoder, path string) (proj.Transformer, error) {
	sr, err := d.SR()
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn("shapefile has no .prj, assuming WGS84", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("read spatial reference: %w", err)
	}

	target, err := proj.Parse(wgs84)
	if err != nil {
		return nil, fmt.Errorf("parse WGS84 definition: %w", err)
	}
	trans, err := sr.NewTransform(target)
	if err != nil {
		return nil, &grid.GeometryError{
			Reason: fmt.Sprintf("shapefile %q cannot be reprojected to WGS84: %v", path, err),
		}
	}
	return trans, nil
}

func toOrb(g geom.Geom) (orb.MultiPolygon, error) {
	switch g := g.(type) {
	case geom.Polygon:
		return orb.MultiPolygon{polyToOrb(g)}, nil
	case geom.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(g))
		for _, p := range g {
			out = append(out, polyToOrb(p))
		}
		return out, nil
	default:
		return nil, &grid.GeometryError{
			Reason: fmt.Sprintf("unsupported geometry type %T, expected polygon", g),
		}
	}
}

func polyToOrb(p geom.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, len(p))
	for _, path := range p {
		ring := make(orb.Ring, 0, len(path))
		for _, pt := range path {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		out = append(out, ring)
	}
	return out
}
