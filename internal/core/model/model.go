// Package model defines core domain types shared across the catalog builder.
package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	CRSLV03  = "EPSG:21781"
	CRSLV95  = "EPSG:2056"
	CRSWGS84 = "EPSG:4326"
)

// UnknownSpatialReference labels extents whose source carries no reference data.
const UnknownSpatialReference = "unknown"

type SourceKind int

const (
	Raster SourceKind = iota
	PointCloud
)

func (k SourceKind) String() string {
	switch k {
	case Raster:
		return "raster"
	case PointCloud:
		return "point-cloud"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

// String representation matching wfs/wms bbox format
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

func (b BBox) Intersects(o BBox) bool {
	return b.X1 <= o.X2 && o.X1 <= b.X2 && b.Y1 <= o.Y2 && o.Y1 <= b.Y2
}

// DatasetExtent is the bounding box of one source file in its native plane.
type DatasetExtent struct {
	XMin, XMax       float64
	YMin, YMax       float64
	SourcePath       string
	DisplayName      string
	SpatialReference string
	Kind             SourceKind
}

func (e DatasetExtent) BBox() BBox {
	return BBox{X1: e.XMin, Y1: e.YMin, X2: e.XMax, Y2: e.YMax}
}

type DatasetMetadata struct {
	Glacier         string
	AcquisitionDate time.Time
	Year            int
	Product         string
	HorizontalCRS   string
	VerticalCRS     string
}

type Point struct {
	X, Y float64
}

// Footprint is a closed rectangular ring: four corners and the first corner repeated.
type Footprint struct {
	Ring [5]Point
	CRS  string
}

func (f Footprint) Bounds() BBox {
	bb := BBox{X1: f.Ring[0].X, Y1: f.Ring[0].Y, X2: f.Ring[0].X, Y2: f.Ring[0].Y, SRID: f.CRS}
	for _, p := range f.Ring[1:] {
		bb.X1 = min(bb.X1, p.X)
		bb.X2 = max(bb.X2, p.X)
		bb.Y1 = min(bb.Y1, p.Y)
		bb.Y2 = max(bb.Y2, p.Y)
	}
	return bb
}

// Coordinates returns the ring in GeoJSON Polygon layout ([ring][i][x,y]).
func (f Footprint) Coordinates() [][][]float64 {
	ring := make([][]float64, 0, len(f.Ring))
	for _, p := range f.Ring {
		ring = append(ring, []float64{p.X, p.Y})
	}
	return [][][]float64{ring}
}

func (f Footprint) WKT() string {
	pts := make([]string, 0, len(f.Ring))
	for _, p := range f.Ring {
		pts = append(pts, fmt.Sprintf("%.3f %.3f", p.X, p.Y))
	}
	return fmt.Sprintf("POLYGON((%s))", strings.Join(pts, ", "))
}

type Cells []string

// Entry is one catalog row: geometry plus the attribute values of the active schema.
type Entry struct {
	ID         string
	SourcePath string
	Footprint  Footprint
	Attributes map[string]any
	Cells      Cells
}
