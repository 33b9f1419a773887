package footprint

import (
	"errors"
	"testing"

	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
	"github.com/mohammed-shakir/geodata-catalog/internal/geo/swissgrid"
)

type recordingProjector struct {
	calls int
	from  string
	to    string
	err   error
	inner Projector
}

func (r *recordingProjector) Project(pts []model.Point, from, to string) ([]model.Point, error) {
	r.calls++
	r.from, r.to = from, to
	if r.err != nil {
		return nil, r.err
	}
	return r.inner.Project(pts, from, to)
}

func TestBuild_LV95ExtentIsProjected(t *testing.T) {
	proj := &recordingProjector{inner: swissgrid.New()}
	b := NewBuilder(proj)

	fp, err := b.Build(model.DatasetExtent{XMin: 2_600_000, XMax: 2_600_100, YMin: 1_200_000, YMax: 1_200_100})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if proj.calls != 1 || proj.from != model.CRSLV95 || proj.to != model.CRSLV03 {
		t.Fatalf("projector calls=%d from=%s to=%s", proj.calls, proj.from, proj.to)
	}
	want := [5]model.Point{
		{X: 600_000, Y: 200_000},
		{X: 600_000, Y: 200_100},
		{X: 600_100, Y: 200_100},
		{X: 600_100, Y: 200_000},
		{X: 600_000, Y: 200_000},
	}
	if fp.Ring != want {
		t.Fatalf("ring=%+v want %+v", fp.Ring, want)
	}
	if fp.CRS != model.CRSLV03 {
		t.Fatalf("crs=%s want %s", fp.CRS, model.CRSLV03)
	}
}

func TestBuild_LV03ExtentUnchanged(t *testing.T) {
	proj := &recordingProjector{inner: swissgrid.New()}
	b := NewBuilder(proj)

	ext := model.DatasetExtent{XMin: 600_000, XMax: 600_500, YMin: 200_000, YMax: 200_250}
	fp, err := b.Build(ext)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if proj.calls != 0 {
		t.Fatalf("projector must not be called for LV03 input")
	}
	if fp.Ring != Ring(ext) {
		t.Fatalf("ring=%+v want %+v", fp.Ring, Ring(ext))
	}
}

func TestBuild_RingOrderAndClosure(t *testing.T) {
	ring := Ring(model.DatasetExtent{XMin: 1, XMax: 3, YMin: 2, YMax: 4})
	want := [5]model.Point{{X: 1, Y: 2}, {X: 1, Y: 4}, {X: 3, Y: 4}, {X: 3, Y: 2}, {X: 1, Y: 2}}
	if ring != want {
		t.Fatalf("ring=%+v want %+v", ring, want)
	}
	if ring[0] != ring[4] {
		t.Fatalf("ring not closed")
	}
}

func TestSourceCRS_BothThresholdsRequired(t *testing.T) {
	tests := []struct {
		name string
		ext  model.DatasetExtent
		want string
	}{
		{"both above", model.DatasetExtent{XMin: 2_000_001, YMin: 1_000_001}, model.CRSLV95},
		{"easting only", model.DatasetExtent{XMin: 2_600_000, YMin: 200_000}, model.CRSLV03},
		{"northing only", model.DatasetExtent{XMin: 600_000, YMin: 1_200_000}, model.CRSLV03},
		{"exactly on threshold", model.DatasetExtent{XMin: 2_000_000, YMin: 1_000_000}, model.CRSLV03},
		{"placeholder box", model.DatasetExtent{XMin: 0, XMax: 10, YMin: 0, YMax: 10}, model.CRSLV03},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SourceCRS(tt.ext); got != tt.want {
				t.Fatalf("SourceCRS=%s want %s", got, tt.want)
			}
		})
	}
}

func TestBuild_ProjectorErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	b := NewBuilder(&recordingProjector{err: boom})

	_, err := b.Build(model.DatasetExtent{XMin: 2_600_000, XMax: 2_600_100, YMin: 1_200_000, YMax: 1_200_100})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want wrapped boom", err)
	}
}

func TestBuild_NilProjector(t *testing.T) {
	b := NewBuilder(nil)

	if _, err := b.Build(model.DatasetExtent{XMin: 2_600_000, XMax: 2_600_100, YMin: 1_200_000, YMax: 1_200_100}); err == nil {
		t.Fatal("expected an error for LV95 input without a projector")
	}

	fp, err := b.Build(model.DatasetExtent{XMin: 600_000, XMax: 600_100, YMin: 200_000, YMax: 200_100})
	if err != nil {
		t.Fatalf("LV03 input needs no projector: %v", err)
	}
	if fp.CRS != model.CRSLV03 {
		t.Fatalf("CRS=%s want %s", fp.CRS, model.CRSLV03)
	}
}
