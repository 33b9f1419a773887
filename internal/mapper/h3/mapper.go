package h3mapper

import (
	"errors"
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

type Projector interface {
	Project(pts []model.Point, from, to string) ([]model.Point, error)
}

// Mapper polyfills footprints with H3 cells. Footprints are projected to
// WGS84 first; bboxes passed to CellsForBBox must already be in WGS84.
type Mapper struct {
	proj Projector
}

func New(proj Projector) *Mapper { return &Mapper{proj: proj} }

func (m *Mapper) CellsForBBox(bb model.BBox, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	// rectangular loop, lng/lat in degrees
	outer := h3.GeoLoop{
		{Lat: bb.Y1, Lng: bb.X1},
		{Lat: bb.Y1, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X2},
		{Lat: bb.Y2, Lng: bb.X1},
	}
	cells, err := polyfillOne(outer, nil, res)
	if err != nil || len(cells) > 0 {
		return cells, err
	}
	return centroidCell(outer, res)
}

// CellsForFootprint returns the sorted cells covering fp. A footprint smaller
// than one cell yields the cell containing its centroid.
func (m *Mapper) CellsForFootprint(fp model.Footprint, res int) (model.Cells, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}

	pts := fp.Ring[:]
	if fp.CRS != model.CRSWGS84 {
		if m.proj == nil {
			return nil, fmt.Errorf("footprint in %s needs a projector", fp.CRS)
		}
		var err error
		pts, err = m.proj.Project(pts, fp.CRS, model.CRSWGS84)
		if err != nil {
			return nil, fmt.Errorf("project footprint to wgs84: %w", err)
		}
	}

	outer := toLoop(pts)
	if len(outer) < 4 {
		return nil, errors.New("footprint ring has < 4 distinct vertices")
	}
	cells, err := polyfillOne(outer, nil, res)
	if err != nil {
		return nil, err
	}
	if len(cells) > 0 {
		return cells, nil
	}
	return centroidCell(outer, res)
}

// --- helpers ---

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// toLoop converts lng/lat points to a GeoLoop and drops the closing vertex.
func toLoop(pts []model.Point) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(pts))
	for _, p := range pts {
		loop = append(loop, h3.LatLng{Lat: p.Y, Lng: p.X})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}

// polyfillOne computes unique cells and returns them sorted for determinism.
func polyfillOne(outer h3.GeoLoop, holes []h3.GeoLoop, res int) (model.Cells, error) {
	if len(outer) < 4 {
		return nil, errors.New("outer ring has < 4 vertices")
	}
	poly := h3.GeoPolygon{
		GeoLoop: outer,
		Holes:   holes,
	}

	indexes, err := h3.PolygonToCells(poly, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func centroidCell(loop h3.GeoLoop, res int) (model.Cells, error) {
	var lat, lng float64
	for _, ll := range loop {
		lat += ll.Lat
		lng += ll.Lng
	}
	n := float64(len(loop))
	c, err := h3.LatLngToCell(h3.LatLng{Lat: lat / n, Lng: lng / n}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 centroid cell: %w", err)
	}
	return model.Cells{c.String()}, nil
}
