package swissgrid

import (
	"math"
	"testing"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

func TestLV03ToWGS84_BernOrigin(t *testing.T) {
	lat, lng := LV03ToWGS84(600_000, 200_000)
	if math.Abs(lat-46.9510811) > 1e-6 || math.Abs(lng-7.4386372) > 1e-6 {
		t.Fatalf("origin -> (%f,%f) want (46.951081,7.438637)", lat, lng)
	}
}

func TestLV03ToWGS84_RhoneGlacierArea(t *testing.T) {
	// Rhone glacier tongue, roughly 46.58N 8.38E
	lat, lng := LV03ToWGS84(672_000, 160_000)
	if lat < 46.5 || lat > 46.7 || lng < 8.3 || lng > 8.5 {
		t.Fatalf("unexpected position (%f,%f)", lat, lng)
	}
}

func TestProject_LV95ToLV03IsPlanarShift(t *testing.T) {
	p := New()
	in := []model.Point{{X: 2_600_000, Y: 1_200_000}, {X: 2_600_100, Y: 1_200_100}}
	out, err := p.Project(in, model.CRSLV95, model.CRSLV03)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	want := []model.Point{{X: 600_000, Y: 200_000}, {X: 600_100, Y: 200_100}}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("point %d = %+v want %+v", i, out[i], want[i])
		}
	}
	if in[0].X != 2_600_000 {
		t.Fatalf("input slice was mutated")
	}
}

func TestProject_RoundTrip(t *testing.T) {
	p := New()
	in := []model.Point{{X: 672_123.5, Y: 160_987.25}}
	up, err := p.Project(in, model.CRSLV03, model.CRSLV95)
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	back, err := p.Project(up, model.CRSLV95, model.CRSLV03)
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if back[0] != in[0] {
		t.Fatalf("round trip %+v != %+v", back[0], in[0])
	}
}

func TestProject_LV95ToWGS84MatchesLV03Path(t *testing.T) {
	p := New()
	a, err := p.Project([]model.Point{{X: 2_672_000, Y: 1_160_000}}, model.CRSLV95, model.CRSWGS84)
	if err != nil {
		t.Fatalf("lv95: %v", err)
	}
	b, err := p.Project([]model.Point{{X: 672_000, Y: 160_000}}, model.CRSLV03, model.CRSWGS84)
	if err != nil {
		t.Fatalf("lv03: %v", err)
	}
	if a[0] != b[0] {
		t.Fatalf("lv95 path %+v != lv03 path %+v", a[0], b[0])
	}
}

func TestProject_Unsupported(t *testing.T) {
	if _, err := New().Project(nil, model.CRSWGS84, model.CRSLV03); err == nil {
		t.Fatalf("expected error for unsupported transform")
	}
}
