package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

type geometry struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"` // [ring][i][x,y]
}

type feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Geometry   geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
	// foreign members
	CRS    string   `json:"crs"`
	Source string   `json:"source"`
	H3     []string `json:"h3,omitempty"`
}

// EncodeFeature renders e as a single-line GeoJSON Feature with its
// attributes normalized against s. Dates are written as YYYY-MM-DD.
func EncodeFeature(e model.Entry, s Schema) ([]byte, error) {
	props, err := s.Normalize(e.Attributes)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	for k, v := range props {
		if t, ok := v.(time.Time); ok {
			props[k] = t.Format(time.DateOnly)
		}
	}

	f := feature{
		Type: "Feature",
		ID:   e.ID,
		Geometry: geometry{
			Type:        "Polygon",
			Coordinates: e.Footprint.Coordinates(),
		},
		Properties: props,
		CRS:        e.Footprint.CRS,
		Source:     e.SourcePath,
		H3:         e.Cells,
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode feature %s: %w", e.ID, err)
	}
	return b, nil
}

func DecodeFeature(b []byte, s Schema) (model.Entry, error) {
	var f feature
	if err := json.Unmarshal(b, &f); err != nil {
		return model.Entry{}, fmt.Errorf("parse feature: %w", err)
	}
	if f.Type != "Feature" {
		return model.Entry{}, fmt.Errorf("type is %q (want \"Feature\")", f.Type)
	}
	if f.Geometry.Type != "Polygon" || len(f.Geometry.Coordinates) != 1 || len(f.Geometry.Coordinates[0]) != 5 {
		return model.Entry{}, fmt.Errorf("feature %s: geometry is not a 5-point polygon", f.ID)
	}

	fp := model.Footprint{CRS: f.CRS}
	for i, xy := range f.Geometry.Coordinates[0] {
		if len(xy) < 2 {
			return model.Entry{}, fmt.Errorf("feature %s: vertex %d has %d values", f.ID, i, len(xy))
		}
		fp.Ring[i] = model.Point{X: xy[0], Y: xy[1]}
	}

	attrs, err := s.Normalize(f.Properties)
	if err != nil {
		return model.Entry{}, fmt.Errorf("feature %s: %w", f.ID, err)
	}

	return model.Entry{
		ID:         f.ID,
		SourcePath: f.Source,
		Footprint:  fp,
		Attributes: attrs,
		Cells:      f.H3,
	}, nil
}
