package raster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

// GDALInfoReader shells out to `gdalinfo -json`, so any format GDAL can open
// is covered without linking GDAL into the binary.
type GDALInfoReader struct {
	bin string
}

func NewGDALInfoReader(bin string) *GDALInfoReader {
	if bin == "" {
		bin = "gdalinfo"
	}
	return &GDALInfoReader{bin: bin}
}

func (r *GDALInfoReader) Read(ctx context.Context, path string) (Info, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.bin, "-json", path) //nolint:gosec // binary is operator configured
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return Info{}, fmt.Errorf("gdalinfo %q: %w: %s", path, err, msg)
		}
		return Info{}, fmt.Errorf("gdalinfo %q: %w", path, err)
	}
	info, err := parseGDALInfo(stdout.Bytes())
	if err != nil {
		return Info{}, fmt.Errorf("gdalinfo %q: %w", path, err)
	}
	return info, nil
}

type gdalInfoDoc struct {
	CornerCoordinates map[string][]float64 `json:"cornerCoordinates"`
	CoordinateSystem  *struct {
		WKT string `json:"wkt"`
	} `json:"coordinateSystem"`
}

func parseGDALInfo(b []byte) (Info, error) {
	var doc gdalInfoDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return Info{}, fmt.Errorf("parse json: %w", err)
	}
	if len(doc.CornerCoordinates) == 0 {
		return Info{}, errors.New("no cornerCoordinates")
	}

	first := true
	var info Info
	for name, xy := range doc.CornerCoordinates {
		if name == "center" {
			continue
		}
		if len(xy) < 2 {
			return Info{}, fmt.Errorf("corner %q has %d values", name, len(xy))
		}
		if first {
			info = Info{XMin: xy[0], XMax: xy[0], YMin: xy[1], YMax: xy[1]}
			first = false
			continue
		}
		info.XMin = min(info.XMin, xy[0])
		info.XMax = max(info.XMax, xy[0])
		info.YMin = min(info.YMin, xy[1])
		info.YMax = max(info.YMax, xy[1])
	}
	if first {
		return Info{}, errors.New("no usable corners")
	}

	var wkt string
	if doc.CoordinateSystem != nil {
		wkt = doc.CoordinateSystem.WKT
	}
	info.SpatialReference = labelOrUnknown(wktName(wkt))
	return info, info.valid()
}
