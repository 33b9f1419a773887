package h3mapper

import (
	"reflect"
	"sort"
	"testing"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
	"github.com/mohammed-shakir/geodata-catalog/internal/footprint"
	"github.com/mohammed-shakir/geodata-catalog/internal/geo/swissgrid"
)

func lv03Footprint(xmin, ymin, xmax, ymax float64) model.Footprint {
	ext := model.DatasetExtent{XMin: xmin, XMax: xmax, YMin: ymin, YMax: ymax}
	return model.Footprint{Ring: footprint.Ring(ext), CRS: model.CRSLV03}
}

func TestBBox_HappyPath_SortedUnique(t *testing.T) {
	m := New(nil)
	// around Bern
	bb := model.BBox{X1: 7.40, Y1: 46.93, X2: 7.48, Y2: 46.97, SRID: model.CRSWGS84}

	cells, err := m.CellsForBBox(bb, 8)
	if err != nil {
		t.Fatalf("CellsForBBox err: %v", err)
	}
	if len(cells) == 0 {
		t.Fatalf("expected non-empty cells for bbox")
	}
	if !sort.StringsAreSorted([]string(cells)) {
		t.Fatalf("cells must be sorted")
	}
	if hasDups(cells) {
		t.Fatalf("cells must be de-duplicated")
	}
}

func TestFootprint_ProjectedAndDeterministic(t *testing.T) {
	m := New(swissgrid.New())
	// 4 km x 3 km around the Rhone glacier tongue
	fp := lv03Footprint(670000, 157000, 674000, 160000)

	cells, err := m.CellsForFootprint(fp, 8)
	if err != nil {
		t.Fatalf("CellsForFootprint: %v", err)
	}
	if len(cells) < 2 {
		t.Fatalf("expected several cells for a 12 km2 footprint, got %v", cells)
	}
	if !sort.StringsAreSorted([]string(cells)) || hasDups(cells) {
		t.Fatalf("footprint cells must be sorted + unique")
	}

	again, err := m.CellsForFootprint(fp, 8)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !reflect.DeepEqual(cells, again) {
		t.Fatalf("expected identical output for identical input")
	}
}

func TestFootprint_SmallerThanCellFallsBackToCentroid(t *testing.T) {
	m := New(swissgrid.New())
	fp := lv03Footprint(600000, 200000, 600010, 200010)

	cells, err := m.CellsForFootprint(fp, 5)
	if err != nil {
		t.Fatalf("CellsForFootprint: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("expected exactly the centroid cell, got %v", cells)
	}
}

func TestFootprint_Errors(t *testing.T) {
	fp := lv03Footprint(600000, 200000, 601000, 201000)

	if _, err := New(nil).CellsForFootprint(fp, 8); err == nil {
		t.Fatalf("expected error without a projector for an lv03 footprint")
	}
	if _, err := New(swissgrid.New()).CellsForFootprint(fp, 16); err == nil {
		t.Fatalf("expected error for res=16")
	}

	degenerate := model.Footprint{CRS: model.CRSWGS84}
	if _, err := New(nil).CellsForFootprint(degenerate, 8); err == nil {
		t.Fatalf("expected error for degenerate footprint")
	}
}

func TestBounds_InvalidResolution(t *testing.T) {
	m := New(nil)
	bb := model.BBox{X1: 7, Y1: 46, X2: 8, Y2: 47, SRID: model.CRSWGS84}

	if _, err := m.CellsForBBox(bb, -1); err == nil {
		t.Fatalf("expected error for res=-1")
	}
	if _, err := m.CellsForBBox(bb, 16); err == nil {
		t.Fatalf("expected error for res=16")
	}
}

func hasDups(s []string) bool {
	seen := map[string]struct{}{}
	for _, v := range s {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
