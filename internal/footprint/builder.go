// Package footprint turns dataset extents into closed polygons in the
// canonical catalog system (CH1903/LV03).
package footprint

import (
	"fmt"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

// Seven-digit eastings and northings above one million identify LV95 input.
const (
	lv95MinEasting  = 2_000_000
	lv95MinNorthing = 1_000_000
)

type Projector interface {
	Project(pts []model.Point, from, to string) ([]model.Point, error)
}

type Builder struct {
	proj      Projector
	canonical string
}

func NewBuilder(proj Projector) *Builder {
	return &Builder{proj: proj, canonical: model.CRSLV03}
}

// SourceCRS reports the system the extent is assumed to be expressed in.
// It is a threshold heuristic on the lower-left corner, not a tag lookup.
func SourceCRS(ext model.DatasetExtent) string {
	if ext.XMin > lv95MinEasting && ext.YMin > lv95MinNorthing {
		return model.CRSLV95
	}
	return model.CRSLV03
}

func Ring(ext model.DatasetExtent) [5]model.Point {
	return [5]model.Point{
		{X: ext.XMin, Y: ext.YMin},
		{X: ext.XMin, Y: ext.YMax},
		{X: ext.XMax, Y: ext.YMax},
		{X: ext.XMax, Y: ext.YMin},
		{X: ext.XMin, Y: ext.YMin},
	}
}

func (b *Builder) Build(ext model.DatasetExtent) (model.Footprint, error) {
	ring := Ring(ext)
	src := SourceCRS(ext)
	if src == b.canonical {
		return model.Footprint{Ring: ring, CRS: b.canonical}, nil
	}

	if b.proj == nil {
		return model.Footprint{}, fmt.Errorf("footprint in %s needs a projector to %s", src, b.canonical)
	}
	pts, err := b.proj.Project(ring[:], src, b.canonical)
	if err != nil {
		return model.Footprint{}, fmt.Errorf("project footprint %s -> %s: %w", src, b.canonical, err)
	}
	if len(pts) != len(ring) {
		return model.Footprint{}, fmt.Errorf("projector returned %d points, want %d", len(pts), len(ring))
	}

	fp := model.Footprint{CRS: b.canonical}
	copy(fp.Ring[:], pts)
	// keep the ring closed even if the projector rounds differently per vertex
	fp.Ring[4] = fp.Ring[0]
	return fp, nil
}
