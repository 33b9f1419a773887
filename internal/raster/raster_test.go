package raster

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tiffTag struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shorts(vals ...uint16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return b
}

func doubles(vals ...float64) []byte {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return b
}

func shortTag(tag uint16, vals ...uint16) tiffTag {
	return tiffTag{tag: tag, typ: 3, count: uint32(len(vals)), data: shorts(vals...)}
}

func doubleTag(tag uint16, vals ...float64) tiffTag {
	return tiffTag{tag: tag, typ: 12, count: uint32(len(vals)), data: doubles(vals...)}
}

func asciiTag(tag uint16, s string) tiffTag {
	return tiffTag{tag: tag, typ: 2, count: uint32(len(s) + 1), data: append([]byte(s), 0)}
}

// buildTIFF writes a little-endian classic TIFF with a single IFD and no pixel data.
func buildTIFF(tags []tiffTag) []byte {
	ifdSize := 2 + 12*len(tags) + 4
	dataOff := 8 + ifdSize

	var hdr, ifd, data bytes.Buffer
	hdr.WriteString("II")
	_ = binary.Write(&hdr, binary.LittleEndian, uint16(42))
	_ = binary.Write(&hdr, binary.LittleEndian, uint32(8))

	_ = binary.Write(&ifd, binary.LittleEndian, uint16(len(tags)))
	for _, tg := range tags {
		_ = binary.Write(&ifd, binary.LittleEndian, tg.tag)
		_ = binary.Write(&ifd, binary.LittleEndian, tg.typ)
		_ = binary.Write(&ifd, binary.LittleEndian, tg.count)
		if len(tg.data) <= 4 {
			var inline [4]byte
			copy(inline[:], tg.data)
			ifd.Write(inline[:])
			continue
		}
		_ = binary.Write(&ifd, binary.LittleEndian, uint32(dataOff+data.Len()))
		data.Write(tg.data)
	}
	_ = binary.Write(&ifd, binary.LittleEndian, uint32(0))

	out := append(hdr.Bytes(), ifd.Bytes()...)
	return append(out, data.Bytes()...)
}

func writeFile(t *testing.T, dir, name string, body []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, body, 0o600))
	return p
}

func TestGeoTIFF_TiepointAndScaleLV95(t *testing.T) {
	body := buildTIFF([]tiffTag{
		shortTag(tagImageWidth, 100),
		shortTag(tagImageLength, 50),
		doubleTag(tagModelPixelScale, 2, 2, 0),
		doubleTag(tagModelTiepoint, 0, 0, 0, 2_600_000, 1_200_100, 0),
		shortTag(tagGeoKeyDirectory, 1, 1, 0, 2, 1024, 0, 1, 1, keyProjectedCSType, 0, 1, 2056),
	})
	p := writeFile(t, t.TempDir(), "Rhone_20180715_DOP_LV95.tif", body)

	info, err := NewGeoTIFFReader().Read(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Info{
		XMin: 2_600_000, XMax: 2_600_200,
		YMin: 1_200_000, YMax: 1_200_100,
		SpatialReference: "CH1903+_LV95",
	}, info)
}

func TestGeoTIFF_PixelIsPointShiftsHalfPixel(t *testing.T) {
	body := buildTIFF([]tiffTag{
		shortTag(tagImageWidth, 10),
		shortTag(tagImageLength, 10),
		doubleTag(tagModelPixelScale, 1, 1, 0),
		doubleTag(tagModelTiepoint, 0, 0, 0, 600_000.5, 200_009.5, 0),
		shortTag(tagGeoKeyDirectory, 1, 1, 0, 2, keyRasterType, 0, 1, rasterPixelIsPoint, keyProjectedCSType, 0, 1, 21781),
	})

	info, err := readGeoTIFF(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 600_000.0, info.XMin)
	assert.Equal(t, 600_010.0, info.XMax)
	assert.Equal(t, 200_000.0, info.YMin)
	assert.Equal(t, 200_010.0, info.YMax)
	assert.Equal(t, "CH1903_LV03", info.SpatialReference)
}

func TestGeoTIFF_CitationAndUnknownCodes(t *testing.T) {
	citation := buildTIFF([]tiffTag{
		shortTag(tagImageWidth, 4),
		shortTag(tagImageLength, 4),
		doubleTag(tagModelPixelScale, 25, 25, 0),
		doubleTag(tagModelTiepoint, 0, 0, 0, 640_000, 160_100, 0),
		shortTag(tagGeoKeyDirectory, 1, 1, 0, 1, keyPCSCitation, tagGeoASCIIParams, 12, 0),
		asciiTag(tagGeoASCIIParams, "CH1903 LV03|"),
	})
	info, err := readGeoTIFF(bytes.NewReader(citation))
	require.NoError(t, err)
	assert.Equal(t, "CH1903 LV03", info.SpatialReference)

	epsg := buildTIFF([]tiffTag{
		shortTag(tagImageWidth, 4),
		shortTag(tagImageLength, 4),
		doubleTag(tagModelPixelScale, 25, 25, 0),
		doubleTag(tagModelTiepoint, 0, 0, 0, 640_000, 160_100, 0),
		shortTag(tagGeoKeyDirectory, 1, 1, 0, 1, keyProjectedCSType, 0, 1, 32632),
	})
	info, err = readGeoTIFF(bytes.NewReader(epsg))
	require.NoError(t, err)
	assert.Equal(t, "EPSG:32632", info.SpatialReference)

	bare := buildTIFF([]tiffTag{
		shortTag(tagImageWidth, 4),
		shortTag(tagImageLength, 4),
		doubleTag(tagModelPixelScale, 25, 25, 0),
		doubleTag(tagModelTiepoint, 0, 0, 0, 640_000, 160_100, 0),
	})
	info, err = readGeoTIFF(bytes.NewReader(bare))
	require.NoError(t, err)
	assert.Equal(t, "unknown", info.SpatialReference)
}

func TestGeoTIFF_ModelTransformation(t *testing.T) {
	body := buildTIFF([]tiffTag{
		tiffTag{tag: tagImageWidth, typ: 4, count: 1, data: []byte{200, 0, 0, 0}},
		shortTag(tagImageLength, 100),
		doubleTag(tagModelTransformation,
			0.5, 0, 0, 600_000,
			0, -0.5, 0, 200_050,
			0, 0, 0, 0,
			0, 0, 0, 1),
	})
	info, err := readGeoTIFF(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, Info{XMin: 600_000, XMax: 600_100, YMin: 200_000, YMax: 200_050, SpatialReference: "unknown"}, info)
}

func TestGeoTIFF_Errors(t *testing.T) {
	_, err := readGeoTIFF(bytes.NewReader([]byte("GIF89a..")))
	assert.Error(t, err)

	noGeo := buildTIFF([]tiffTag{shortTag(tagImageWidth, 4), shortTag(tagImageLength, 4)})
	_, err = readGeoTIFF(bytes.NewReader(noGeo))
	assert.ErrorContains(t, err, "no georeferencing tags")

	big := []byte{'I', 'I', 43, 0, 8, 0, 0, 0}
	_, err = readGeoTIFF(bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = NewGeoTIFFReader().Read(context.Background(), filepath.Join(t.TempDir(), "missing.tif"))
	assert.Error(t, err)
}

func TestGeoTIFF_CorruptTagsReturnErrors(t *testing.T) {
	georef := []tiffTag{
		doubleTag(tagModelPixelScale, 1, 1, 0),
		doubleTag(tagModelTiepoint, 0, 0, 0, 600_000, 200_000, 0),
	}
	tests := []struct {
		name string
		tags []tiffTag
		want string
	}{
		{
			name: "zero count width",
			tags: append([]tiffTag{{tag: tagImageWidth, typ: 3}, shortTag(tagImageLength, 4)}, georef...),
			want: "empty",
		},
		{
			name: "count past end of file",
			tags: []tiffTag{
				shortTag(tagImageWidth, 4),
				shortTag(tagImageLength, 4),
				{tag: tagModelPixelScale, typ: 12, count: 100, data: doubles(1, 1, 0)},
				georef[1],
			},
			want: "read",
		},
		{
			name: "huge count",
			tags: []tiffTag{
				shortTag(tagImageWidth, 4),
				shortTag(tagImageLength, 4),
				{tag: tagModelPixelScale, typ: 12, count: 0x40000000, data: doubles(1, 1, 0)},
				georef[1],
			},
			want: "exceeds limit",
		},
		{
			name: "huge geokey directory",
			tags: append([]tiffTag{
				shortTag(tagImageWidth, 4),
				shortTag(tagImageLength, 4),
				{tag: tagGeoKeyDirectory, typ: 3, count: 0xFFFFFFFF, data: shorts(1, 1, 0, 0)},
			}, georef...),
			want: "exceeds limit",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := buildTIFF(tc.tags)
			require.NotPanics(t, func() {
				_, err := readGeoTIFF(bytes.NewReader(body))
				assert.ErrorContains(t, err, tc.want)
			})
		})
	}
}

func TestASCIIGrid_CornerHeaderAndPrj(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "Gries_20120901_DSM_LV03.asc", []byte(
		"ncols 4\nnrows 3\nxllcorner 660000\nyllcorner 140000\ncellsize 25\nNODATA_value -9999\n"+
			"1 2 3 4\n5 6 7 8\n9 10 11 12\n"))
	writeFile(t, dir, "Gries_20120901_DSM_LV03.prj", []byte(`PROJCS["CH1903_LV03",GEOGCS["GCS_CH1903"]]`))

	info, err := NewASCIIGridReader().Read(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Info{XMin: 660_000, XMax: 660_100, YMin: 140_000, YMax: 140_075, SpatialReference: "CH1903_LV03"}, info)
}

func TestASCIIGrid_CenterHeaderWithoutPrj(t *testing.T) {
	p := writeFile(t, t.TempDir(), "grid.ASC", []byte(
		"NCOLS 2\nNROWS 2\nXLLCENTER 600005\nYLLCENTER 200005\nCELLSIZE 10\n0 0\n0 0\n"))

	info, err := NewASCIIGridReader().Read(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, Info{XMin: 600_000, XMax: 600_020, YMin: 200_000, YMax: 200_020, SpatialReference: "unknown"}, info)
}

func TestASCIIGrid_BadHeaders(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"nocell.asc":   "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\n",
		"noorigin.asc": "ncols 2\nnrows 2\ncellsize 1\n",
		"badnum.asc":   "ncols two\n",
		"empty.asc":    "",
	} {
		p := writeFile(t, dir, name, []byte(body))
		_, err := NewASCIIGridReader().Read(context.Background(), p)
		assert.Error(t, err, name)
	}
}

const gdalInfoJSON = `{
  "driverShortName": "GTiff",
  "coordinateSystem": {"wkt": "PROJCRS[\"CH1903+ / LV95\",BASEGEOGCRS[\"CH1903+\"]]"},
  "cornerCoordinates": {
    "upperLeft": [2600000.0, 1200100.0],
    "lowerLeft": [2600000.0, 1200000.0],
    "lowerRight": [2600200.0, 1200000.0],
    "upperRight": [2600200.0, 1200100.0],
    "center": [2600100.0, 1200050.0]
  }
}`

func TestParseGDALInfo(t *testing.T) {
	info, err := parseGDALInfo([]byte(gdalInfoJSON))
	require.NoError(t, err)
	assert.Equal(t, Info{XMin: 2_600_000, XMax: 2_600_200, YMin: 1_200_000, YMax: 1_200_100, SpatialReference: "CH1903+ / LV95"}, info)

	_, err = parseGDALInfo([]byte(`{"cornerCoordinates":{}}`))
	assert.Error(t, err)
	_, err = parseGDALInfo([]byte(`not json`))
	assert.Error(t, err)
}

func TestGDALInfoReader_RunsBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	dir := t.TempDir()
	stub := writeFile(t, dir, "gdalinfo", []byte("#!/bin/sh\ncat <<'EOF'\n"+gdalInfoJSON+"\nEOF\n"))
	require.NoError(t, os.Chmod(stub, 0o755))

	info, err := NewGDALInfoReader(stub).Read(context.Background(), "/any/file.tif")
	require.NoError(t, err)
	assert.Equal(t, 2_600_000.0, info.XMin)

	failing := writeFile(t, dir, "gdalfail", []byte("#!/bin/sh\necho 'not recognized as a supported file format' >&2\nexit 1\n"))
	require.NoError(t, os.Chmod(failing, 0o755))
	_, err = NewGDALInfoReader(failing).Read(context.Background(), "/any/file.tif")
	assert.ErrorContains(t, err, "not recognized")
}

func TestDispatcher_ExtensionAndFallback(t *testing.T) {
	var fallbackCalls int
	fallback := ReaderFunc(func(_ context.Context, path string) (Info, error) {
		fallbackCalls++
		return Info{XMin: 1, XMax: 2, YMin: 3, YMax: 4, SpatialReference: "fallback"}, nil
	})
	failing := ReaderFunc(func(context.Context, string) (Info, error) { return Info{}, errors.New("native failed") })

	d := NewDispatcher(nil, WithReader(".tif", failing), WithFallback(fallback))

	info, err := d.Read(context.Background(), "/x/a.TIF")
	require.NoError(t, err)
	assert.Equal(t, "fallback", info.SpatialReference)
	assert.Equal(t, 1, fallbackCalls)

	// unknown extension goes straight to the fallback
	_, err = d.Read(context.Background(), "/x/a.img")
	require.NoError(t, err)
	assert.Equal(t, 2, fallbackCalls)

	noFallback := NewDispatcher(nil, WithReader(".tif", failing))
	_, err = noFallback.Read(context.Background(), "/x/a.tif")
	assert.ErrorContains(t, err, "native failed")
	_, err = noFallback.Read(context.Background(), "/x/a.img")
	assert.ErrorIs(t, err, ErrUnsupported)
}
