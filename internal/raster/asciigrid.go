package raster

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ASCIIGridReader reads the header of an ESRI ASCII grid (.asc) and the
// projection name from a sibling .prj file when there is one.
type ASCIIGridReader struct{}

func NewASCIIGridReader() *ASCIIGridReader { return &ASCIIGridReader{} }

const maxGridHeaderLines = 10

func (r *ASCIIGridReader) Read(_ context.Context, path string) (Info, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the crawl
	if err != nil {
		return Info{}, fmt.Errorf("open ascii grid: %w", err)
	}
	defer f.Close() //nolint:errcheck

	hdr := map[string]float64{}
	sc := bufio.NewScanner(f)
	for n := 0; n < maxGridHeaderLines && sc.Scan(); n++ {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			break
		}
		key := strings.ToLower(fields[0])
		if key[0] == '-' || (key[0] >= '0' && key[0] <= '9') {
			// first data row
			break
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return Info{}, fmt.Errorf("ascii grid header %q: %w", fields[0], err)
		}
		hdr[key] = v
	}
	if err := sc.Err(); err != nil {
		return Info{}, fmt.Errorf("read ascii grid header: %w", err)
	}

	info, err := gridBounds(hdr)
	if err != nil {
		return Info{}, fmt.Errorf("ascii grid %q: %w", path, err)
	}
	info.SpatialReference = labelOrUnknown(prjName(path))
	return info, nil
}

func gridBounds(hdr map[string]float64) (Info, error) {
	ncols, okc := hdr["ncols"]
	nrows, okr := hdr["nrows"]
	if !okc || !okr || ncols <= 0 || nrows <= 0 {
		return Info{}, errors.New("missing or invalid ncols/nrows")
	}

	dx, okx := hdr["cellsize"]
	dy := dx
	if !okx {
		dx, okx = hdr["dx"]
		dy, _ = hdr["dy"]
		if dy == 0 {
			dy = dx
		}
	}
	if !okx || dx <= 0 || dy <= 0 {
		return Info{}, errors.New("missing or invalid cellsize")
	}

	var x0, y0 float64
	switch {
	case has(hdr, "xllcorner") && has(hdr, "yllcorner"):
		x0, y0 = hdr["xllcorner"], hdr["yllcorner"]
	case has(hdr, "xllcenter") && has(hdr, "yllcenter"):
		x0, y0 = hdr["xllcenter"]-dx/2, hdr["yllcenter"]-dy/2
	default:
		return Info{}, errors.New("missing lower-left origin")
	}

	info := Info{
		XMin: x0,
		XMax: x0 + ncols*dx,
		YMin: y0,
		YMax: y0 + nrows*dy,
	}
	return info, info.valid()
}

func has(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

func prjName(path string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".prj", ".PRJ"} {
		b, err := os.ReadFile(base + ext) //nolint:gosec // sibling of a crawled file
		if err == nil {
			return wktName(string(b))
		}
	}
	return ""
}
