package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/geodata-catalog/internal/crawler"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDecode_FileNames(t *testing.T) {
	out, err := execute(t, "decode", "Rhone_20180715_DOP_LV03.tif", "/x/Rhone_2018_DSM_LV95_LN02.xyz")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"Rhone_20180715_DOP_LV03.tif", "Rhone", "2018-07-15", "2018", "DOP", "LV03"}, strings.Fields(lines[1]))
	assert.Contains(t, lines[2], "2018-09-01")
	assert.Contains(t, lines[2], "LN02")
	assert.Contains(t, lines[2], "date from year only")
}

func TestDecode_ReportsFailures(t *testing.T) {
	out, err := execute(t, "decode", "overview.tif")
	require.Error(t, err)
	assert.Contains(t, out, "undecodable acquisition date")
}

func TestDecode_PathFields(t *testing.T) {
	dir := filepath.Join("srv", "DOP", "LV95", "2015")
	out, err := execute(t, "decode", "--field", "datatype,year", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "DATATYPE")
	assert.Contains(t, out, "2015")
}

func TestBuildThenQuery_GeoJSON(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Rhone_20180715_DOP_LV03.xyz"),
		[]byte("600000 200000 1500\n600100 200050 1510\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Gorner_20170901_DSM_LV03.xyz"),
		[]byte("625000 92000 3100\n625200 92100 3110\n"), 0o600))

	catDir := t.TempDir()
	t.Setenv("CATALOG_DIR", catDir)
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "build", "--root", root, "--h3-res", "7")
	require.NoError(t, err)

	var sum crawler.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 2, sum.Written)

	out, err = execute(t, "query", "--bbox", "599000,199000,601000,201000", "--h3-res", "7")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Rhone_20180715_DOP_LV03.xyz")
}

func TestExtent_PointCloud(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Rhone_2018_DSM_LV95_LN02.xyz")
	require.NoError(t, os.WriteFile(path, []byte("2600000 1200000 1\n2600100 1200100 2\n"), 0o600))

	out, err := execute(t, "extent", path)
	require.NoError(t, err)

	var rep extentReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "point-cloud", rep.Kind)
	assert.Equal(t, "EPSG:2056", rep.SourceCRS)
	assert.Equal(t, [4]float64{2600000, 1200000, 2600100, 1200100}, rep.Extent)
	require.Len(t, rep.Footprint, 5)
	assert.InDelta(t, 600000, rep.Footprint[0][0], 1e-6)
	assert.NotEmpty(t, rep.Cells)
}

func TestQuery_RequiresOneFilter(t *testing.T) {
	_, err := execute(t, "query")
	require.Error(t, err)
}

func TestQuery_CellAndCollection(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Rhone_20180715_DOP_LV03.xyz"),
		[]byte("600000 200000 1500\n600100 200050 1510\n"), 0o600))
	t.Setenv("CATALOG_DIR", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	_, err := execute(t, "build", "--root", root, "--h3-res", "7")
	require.NoError(t, err)

	out, err := execute(t, "query", "--bbox", "0,0,1000000,1000000", "--h3-res", "7")
	require.NoError(t, err)
	var feat struct {
		H3 []string `json:"h3"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &feat))
	require.NotEmpty(t, feat.H3)

	out, err = execute(t, "query", "--cell", feat.H3[0], "--collection", "--h3-res", "7")
	require.NoError(t, err)
	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &fc))
	assert.Len(t, fc.Features, 1)
}
