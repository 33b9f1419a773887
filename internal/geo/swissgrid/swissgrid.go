// Package swissgrid converts between the Swiss projected systems CH1903/LV03,
// CH1903+/LV95 and WGS84.
//
// LV95 and LV03 share the same projection; LV95 adds a false easting of
// 2 000 000 m and a false northing of 1 000 000 m. The WGS84 conversion uses
// the swisstopo approximate formulas (accuracy around one metre).
package swissgrid

import (
	"fmt"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

const (
	lv95FalseEasting  = 2_000_000.0
	lv95FalseNorthing = 1_000_000.0
)

// Projector implements the planar transforms between the supported systems.
type Projector struct{}

func New() *Projector { return &Projector{} }

func (p *Projector) Project(pts []model.Point, from, to string) ([]model.Point, error) {
	if from == to {
		out := make([]model.Point, len(pts))
		copy(out, pts)
		return out, nil
	}

	var f func(model.Point) model.Point
	switch {
	case from == model.CRSLV95 && to == model.CRSLV03:
		f = LV95ToLV03
	case from == model.CRSLV03 && to == model.CRSLV95:
		f = LV03ToLV95
	case from == model.CRSLV03 && to == model.CRSWGS84:
		f = func(pt model.Point) model.Point {
			lat, lng := LV03ToWGS84(pt.X, pt.Y)
			return model.Point{X: lng, Y: lat}
		}
	case from == model.CRSLV95 && to == model.CRSWGS84:
		f = func(pt model.Point) model.Point {
			q := LV95ToLV03(pt)
			lat, lng := LV03ToWGS84(q.X, q.Y)
			return model.Point{X: lng, Y: lat}
		}
	default:
		return nil, fmt.Errorf("unsupported transform %s -> %s", from, to)
	}

	out := make([]model.Point, len(pts))
	for i, pt := range pts {
		out[i] = f(pt)
	}
	return out, nil
}

func LV95ToLV03(pt model.Point) model.Point {
	return model.Point{X: pt.X - lv95FalseEasting, Y: pt.Y - lv95FalseNorthing}
}

func LV03ToLV95(pt model.Point) model.Point {
	return model.Point{X: pt.X + lv95FalseEasting, Y: pt.Y + lv95FalseNorthing}
}

// LV03ToWGS84 takes an LV03 easting/northing and returns latitude/longitude in degrees.
func LV03ToWGS84(easting, northing float64) (lat, lng float64) {
	// auxiliary values, in 1000 km, relative to the Bern origin
	y := (easting - 600_000) / 1_000_000
	x := (northing - 200_000) / 1_000_000

	lngAux := 2.6779094 +
		4.728982*y +
		0.791484*y*x +
		0.1306*y*x*x -
		0.0436*y*y*y

	latAux := 16.9023892 +
		3.238272*x -
		0.270978*y*y -
		0.002528*x*x -
		0.0447*y*y*x -
		0.0140*x*x*x

	// unit 10000" to degrees
	return latAux * 100 / 36, lngAux * 100 / 36
}
