package geojsonseq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/geodata-catalog/internal/catalog"
	"github.com/mohammed-shakir/geodata-catalog/internal/core/model"
)

var testSchema = catalog.Schema{
	Name: "swisstopo_lv03",
	Fields: []catalog.Field{
		{Name: "FilePath", Type: catalog.Text, Length: 500},
		{Name: "DataType", Type: catalog.Text, Length: 3},
		{Name: "CoordSys", Type: catalog.Text, Length: 9},
		{Name: "Year", Type: catalog.Short},
	},
}

func entry(id, path, dataType string) model.Entry {
	return model.Entry{
		ID:         id,
		SourcePath: path,
		Footprint: model.Footprint{CRS: model.CRSLV03, Ring: [5]model.Point{
			{X: 600000, Y: 200000}, {X: 600000, Y: 200500}, {X: 600500, Y: 200500}, {X: 600500, Y: 200000}, {X: 600000, Y: 200000},
		}},
		Attributes: map[string]any{"FilePath": path, "DataType": dataType, "CoordSys": "LV03", "Year": 2015},
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	require.NoError(t, sc.Err())
	return n
}

func TestResetAppendClose_OneLinePerEntry(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "swisstopo_lv03")
	ctx := context.Background()

	require.NoError(t, s.Reset(ctx, testSchema))
	require.NoError(t, s.Append(ctx, entry("a", "/sw/DOP/2015/LV03/a.tif", "DOP")))
	require.NoError(t, s.Append(ctx, entry("b", "/sw/DSM/2015/LV03/b.tif", "DSMX")))
	require.NoError(t, s.Close())

	assert.Equal(t, 2, countLines(t, s.DataPath()))

	raw, err := os.ReadFile(s.DataPath())
	require.NoError(t, err)
	var first map[string]any
	require.NoError(t, json.Unmarshal(raw[:bytes.IndexByte(raw, '\n')], &first))
	assert.Equal(t, "Feature", first["type"])
	assert.Equal(t, "a", first["id"])
	assert.Equal(t, model.CRSLV03, first["crs"])

	got, err := New(dir, "swisstopo_lv03").Entries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "DSM", got[1].Attributes["DataType"], "text truncated to the field length")
	assert.Equal(t, 2015, got[1].Attributes["Year"])
	assert.Equal(t, "/sw/DSM/2015/LV03/b.tif", got[1].SourcePath)
}

func TestAppend_RowVisibleBeforeClose(t *testing.T) {
	s := New(t.TempDir(), "swisstopo_lv03")
	ctx := context.Background()
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Reset(ctx, testSchema))
	require.NoError(t, s.Append(ctx, entry("a", "/sw/DOP/2015/LV03/a.tif", "DOP")))

	assert.Equal(t, 1, countLines(t, s.DataPath()))
	raw, err := os.ReadFile(s.DataPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"a"`)
}

func TestReset_TruncatesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := New(dir, "cat")
	require.NoError(t, s.Reset(ctx, testSchema))
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, s.Append(ctx, entry(id, "/p/"+id+".tif", "DOP")))
	}
	require.NoError(t, s.Close())

	s2 := New(dir, "cat")
	require.NoError(t, s2.Reset(ctx, testSchema))
	require.NoError(t, s2.Append(ctx, entry("4", "/p/4.tif", "DOP")))

	got, err := s2.Entries(ctx)
	require.NoError(t, err, "entries flushes pending writes")
	require.Len(t, got, 1)
	assert.Equal(t, "4", got[0].ID)
	require.NoError(t, s2.Close())
}

func TestAppendWithoutReset_AndClosed(t *testing.T) {
	s := New(t.TempDir(), "cat")
	ctx := context.Background()
	assert.ErrorIs(t, s.Append(ctx, entry("a", "/a", "DOP")), catalog.ErrNoSchema)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Reset(ctx, testSchema), catalog.ErrClosed)
}

func TestEntries_MissingCatalog(t *testing.T) {
	_, err := New(t.TempDir(), "none").Entries(context.Background())
	assert.ErrorIs(t, err, catalog.ErrNoSchema)
}

func TestReset_RejectsInvalidSchema(t *testing.T) {
	s := New(t.TempDir(), "cat")
	bad := catalog.Schema{Name: "x", Fields: []catalog.Field{{Name: "A", Type: catalog.Text}}}
	assert.Error(t, s.Reset(context.Background(), bad))
}

func TestDates_WrittenAsDateOnly(t *testing.T) {
	schema := catalog.Schema{Name: "g", Fields: []catalog.Field{{Name: "MeasDate", Type: catalog.Date}}}
	s := New(t.TempDir(), "g")
	ctx := context.Background()
	require.NoError(t, s.Reset(ctx, schema))

	e := entry("d", "/d.tif", "DOP")
	e.Attributes = map[string]any{"MeasDate": time.Date(2018, 9, 1, 13, 5, 0, 0, time.UTC)}
	require.NoError(t, s.Append(ctx, e))
	require.NoError(t, s.Close())

	raw, err := os.ReadFile(s.DataPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"MeasDate":"2018-09-01"`)
}
