package raster

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// TIFF and GeoTIFF tags read from the first IFD.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagModelPixelScale     = 33550
	tagModelTiepoint       = 33922
	tagModelTransformation = 34264
	tagGeoKeyDirectory     = 34735
	tagGeoDoubleParams     = 34736
	tagGeoASCIIParams      = 34737
)

const (
	keyRasterType      = 1025
	keyGTCitation      = 1026
	keyGeographicType  = 2048
	keyProjectedCSType = 3072
	keyPCSCitation     = 3073

	rasterPixelIsPoint = 2
)

// Names as reported by the georeferencing readers the catalog was first built with.
var crsNames = map[int]string{
	21781: "CH1903_LV03",
	2056:  "CH1903+_LV95",
	4149:  "GCS_CH1903",
	4150:  "GCS_CH1903+",
	4326:  "GCS_WGS_1984",
}

// GeoTIFFReader reads bounds and the coordinate system from classic
// (non-Big) TIFF files carrying GeoTIFF tags.
type GeoTIFFReader struct{}

func NewGeoTIFFReader() *GeoTIFFReader { return &GeoTIFFReader{} }

func (r *GeoTIFFReader) Read(_ context.Context, path string) (Info, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the crawl
	if err != nil {
		return Info{}, fmt.Errorf("open geotiff: %w", err)
	}
	defer f.Close() //nolint:errcheck

	info, err := readGeoTIFF(f)
	if err != nil {
		return Info{}, fmt.Errorf("geotiff %q: %w", path, err)
	}
	return info, nil
}

type ifdEntry struct {
	typ    uint16
	count  uint32
	offset uint32
	inline [4]byte
}

type tiffFile struct {
	r       io.ReaderAt
	order   binary.ByteOrder
	entries map[uint16]ifdEntry
}

var typeSize = map[uint16]uint32{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
}

func readGeoTIFF(r io.ReaderAt) (Info, error) {
	t, err := openTIFF(r)
	if err != nil {
		return Info{}, err
	}

	width, err := t.uintVal(tagImageWidth)
	if err != nil {
		return Info{}, err
	}
	height, err := t.uintVal(tagImageLength)
	if err != nil {
		return Info{}, err
	}

	keys, err := t.geoKeys()
	if err != nil {
		return Info{}, err
	}

	var ulx, uly, sx, sy float64
	switch {
	case t.has(tagModelPixelScale) && t.has(tagModelTiepoint):
		scale, err := t.doubles(tagModelPixelScale)
		if err != nil {
			return Info{}, err
		}
		tie, err := t.doubles(tagModelTiepoint)
		if err != nil {
			return Info{}, err
		}
		if len(scale) < 2 || len(tie) < 6 {
			return Info{}, errors.New("short pixel scale or tiepoint tag")
		}
		sx, sy = scale[0], scale[1]
		ulx = tie[3] - tie[0]*sx
		uly = tie[4] + tie[1]*sy
	case t.has(tagModelTransformation):
		m, err := t.doubles(tagModelTransformation)
		if err != nil {
			return Info{}, err
		}
		if len(m) < 16 {
			return Info{}, errors.New("short model transformation tag")
		}
		sx, sy = m[0], -m[5]
		ulx, uly = m[3], m[7]
	default:
		return Info{}, errors.New("no georeferencing tags")
	}
	if sx <= 0 || sy <= 0 {
		return Info{}, fmt.Errorf("unsupported pixel size %g x %g", sx, sy)
	}

	if keys.short(keyRasterType) == rasterPixelIsPoint {
		ulx -= sx / 2
		uly += sy / 2
	}

	info := Info{
		XMin:             ulx,
		XMax:             ulx + float64(width)*sx,
		YMin:             uly - float64(height)*sy,
		YMax:             uly,
		SpatialReference: labelOrUnknown(keys.crsName()),
	}
	return info, info.valid()
}

func openTIFF(r io.ReaderAt) (*tiffFile, error) {
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var order binary.ByteOrder
	switch string(hdr[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, errors.New("not a tiff file")
	}
	switch order.Uint16(hdr[2:4]) {
	case 42:
	case 43:
		return nil, fmt.Errorf("%w: bigtiff", ErrUnsupported)
	default:
		return nil, errors.New("bad tiff magic")
	}

	t := &tiffFile{r: r, order: order, entries: map[uint16]ifdEntry{}}
	off := int64(order.Uint32(hdr[4:8]))

	var cnt [2]byte
	if _, err := r.ReadAt(cnt[:], off); err != nil {
		return nil, fmt.Errorf("read ifd count: %w", err)
	}
	n := int(order.Uint16(cnt[:]))
	buf := make([]byte, 12*n)
	if _, err := r.ReadAt(buf, off+2); err != nil {
		return nil, fmt.Errorf("read ifd: %w", err)
	}
	for i := 0; i < n; i++ {
		b := buf[i*12 : (i+1)*12]
		e := ifdEntry{
			typ:    order.Uint16(b[2:4]),
			count:  order.Uint32(b[4:8]),
			offset: order.Uint32(b[8:12]),
		}
		copy(e.inline[:], b[8:12])
		t.entries[order.Uint16(b[0:2])] = e
	}
	return t, nil
}

// maxTagBytes caps out-of-line tag values; geokey and tiepoint arrays are far smaller.
const maxTagBytes = 1 << 20

func (t *tiffFile) has(tag uint16) bool {
	_, ok := t.entries[tag]
	return ok
}

func (t *tiffFile) raw(tag uint16) (ifdEntry, []byte, error) {
	e, ok := t.entries[tag]
	if !ok {
		return e, nil, fmt.Errorf("missing tag %d", tag)
	}
	size, ok := typeSize[e.typ]
	if !ok {
		return e, nil, fmt.Errorf("tag %d: unknown type %d", tag, e.typ)
	}
	if e.count == 0 {
		return e, nil, fmt.Errorf("tag %d: empty", tag)
	}
	n := uint64(size) * uint64(e.count)
	if n <= 4 {
		return e, e.inline[:n], nil
	}
	if n > maxTagBytes {
		return e, nil, fmt.Errorf("tag %d: %d bytes exceeds limit %d", tag, n, maxTagBytes)
	}
	buf := make([]byte, n)
	if _, err := t.r.ReadAt(buf, int64(e.offset)); err != nil {
		return e, nil, fmt.Errorf("tag %d: read %d bytes: %w", tag, n, err)
	}
	return e, buf, nil
}

func (t *tiffFile) uintVal(tag uint16) (uint32, error) {
	e, b, err := t.raw(tag)
	if err != nil {
		return 0, err
	}
	switch {
	case e.typ == 3 && len(b) >= 2:
		return uint32(t.order.Uint16(b)), nil
	case e.typ == 4 && len(b) >= 4:
		return t.order.Uint32(b), nil
	}
	return 0, fmt.Errorf("tag %d: type %d is not an integer", tag, e.typ)
}

func (t *tiffFile) shorts(tag uint16) ([]uint16, error) {
	e, b, err := t.raw(tag)
	if err != nil {
		return nil, err
	}
	if e.typ != 3 {
		return nil, fmt.Errorf("tag %d: type %d is not SHORT", tag, e.typ)
	}
	out := make([]uint16, e.count)
	for i := range out {
		out[i] = t.order.Uint16(b[2*i:])
	}
	return out, nil
}

func (t *tiffFile) doubles(tag uint16) ([]float64, error) {
	e, b, err := t.raw(tag)
	if err != nil {
		return nil, err
	}
	if e.typ != 12 {
		return nil, fmt.Errorf("tag %d: type %d is not DOUBLE", tag, e.typ)
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(t.order.Uint64(b[8*i:]))
	}
	return out, nil
}

func (t *tiffFile) ascii(tag uint16) (string, error) {
	_, b, err := t.raw(tag)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type geoKeys struct {
	shortVals map[uint16]uint16
	asciiVals map[uint16]string
}

func (t *tiffFile) geoKeys() (geoKeys, error) {
	gk := geoKeys{shortVals: map[uint16]uint16{}, asciiVals: map[uint16]string{}}
	if !t.has(tagGeoKeyDirectory) {
		return gk, nil
	}
	dir, err := t.shorts(tagGeoKeyDirectory)
	if err != nil {
		return gk, err
	}
	if len(dir) < 4 {
		return gk, errors.New("short geokey directory")
	}

	var params string
	if t.has(tagGeoASCIIParams) {
		if params, err = t.ascii(tagGeoASCIIParams); err != nil {
			return gk, err
		}
	}

	n := int(dir[3])
	for i := 0; i < n && 4+4*i+3 < len(dir); i++ {
		k := dir[4+4*i:]
		id, loc, count, val := k[0], k[1], k[2], k[3]
		switch loc {
		case 0:
			gk.shortVals[id] = val
		case tagGeoASCIIParams:
			start, end := int(val), int(val)+int(count)
			if start <= end && end <= len(params) {
				gk.asciiVals[id] = strings.TrimRight(params[start:end], "|\x00 ")
			}
		case tagGeoDoubleParams:
			// not needed for naming the system
		}
	}
	return gk, nil
}

func (g geoKeys) short(id uint16) uint16 { return g.shortVals[id] }

func (g geoKeys) crsName() string {
	for _, id := range []uint16{keyProjectedCSType, keyGeographicType} {
		code, ok := g.shortVals[id]
		if !ok || code == 0 || code == 32767 {
			continue
		}
		if name, ok := crsNames[int(code)]; ok {
			return name
		}
		return "EPSG:" + strconv.Itoa(int(code))
	}
	for _, id := range []uint16{keyPCSCitation, keyGTCitation} {
		if s := g.asciiVals[id]; s != "" {
			return s
		}
	}
	return ""
}
