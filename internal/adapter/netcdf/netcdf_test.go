package netcdf

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/airlens-api/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleGrid() domain.GridSource {
	nan := math.NaN()
	return domain.GridSource{
		Lat: []float64{45, 44.5},
		Lon: []float64{10, 10.5, 11},
		Gases: map[domain.GasKind][][]float64{
			domain.CO:  {{1, 2, 3}, {4, 5, 6}},
			domain.NO2: {{0.5, 0.25, nan}, {1, 1, 1}},
			domain.O3:  {{8, 8, 8}, {8, 8, 8}},
			domain.SO2: {{2, 4, 8}, {16, 32, 64}},
		},
	}
}

func writeTestFile(t *testing.T, src domain.GridSource) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.nc")
	fh, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteGrid(fh, src, DefaultVariables()))
	require.NoError(t, fh.Close())
	return path
}

func TestReadGrid_RoundTrip(t *testing.T) {
	path := writeTestFile(t, sampleGrid())

	got, err := NewReader(path, DefaultVariables(), discardLogger()).ReadGrid(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []float64{45, 44.5}, got.Lat)
	assert.Equal(t, []float64{10, 10.5, 11}, got.Lon)
	require.Len(t, got.Gases, domain.GasCount)

	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, got.Gases[domain.CO])
	assert.Equal(t, [][]float64{{2, 4, 8}, {16, 32, 64}}, got.Gases[domain.SO2])

	no2 := got.Gases[domain.NO2]
	assert.Equal(t, 0.5, no2[0][0])
	assert.Equal(t, 0.25, no2[0][1])
	assert.True(t, math.IsNaN(no2[0][2]), "fill value should read back as NaN")
}

func TestReadGrid_FeedsIngestion(t *testing.T) {
	path := writeTestFile(t, sampleGrid())

	src, err := NewReader(path, DefaultVariables(), discardLogger()).ReadGrid(context.Background())
	require.NoError(t, err)

	samples, stats, err := domain.Ingest(src)
	require.NoError(t, err)
	assert.Len(t, samples, 5)
	assert.Equal(t, 1, stats.Dropped)
}

func TestReadGrid_MissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "nope.nc"), DefaultVariables(), discardLogger()).
		ReadGrid(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadGrid_MissingVariable(t *testing.T) {
	path := writeTestFile(t, sampleGrid())
	vars := DefaultVariables()
	vars.Gases[domain.SO2] = "so2_surface"

	_, err := NewReader(path, vars, discardLogger()).ReadGrid(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingVariable)
	assert.Contains(t, err.Error(), "so2_surface")
}

func TestReadGrid_CancelledContext(t *testing.T) {
	path := writeTestFile(t, sampleGrid())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewReader(path, DefaultVariables(), discardLogger()).ReadGrid(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInspect(t *testing.T) {
	path := writeTestFile(t, sampleGrid())

	infos, err := Inspect(path)
	require.NoError(t, err)

	byName := make(map[string]VariableInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}
	require.Contains(t, byName, "tcno2")
	assert.Equal(t, []string{"time", "latitude", "longitude"}, byName["tcno2"].Dimensions)
	assert.Equal(t, []int{1, 2, 3}, byName["tcno2"].Lengths)
	assert.Equal(t, "kg m**-2", byName["tcno2"].Units)
	assert.Equal(t, "degrees_north", byName["latitude"].Units)
}

func TestUnpack(t *testing.T) {
	values := []float64{100, -32767, 200, 7}
	p := packing{scale: 0.5, offset: 10, fill: -32767, hasFill: true, missing: 7, hasMissing: true}

	missing := unpack(values, p)

	assert.Equal(t, 2, missing)
	assert.Equal(t, 60.0, values[0])
	assert.True(t, math.IsNaN(values[1]))
	assert.Equal(t, 110.0, values[2])
	assert.True(t, math.IsNaN(values[3]))
}

func TestToFloat64s(t *testing.T) {
	got, err := toFloat64s([]int16{-2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, 3}, got)

	_, err = toFloat64s("text")
	assert.Error(t, err)

	_, err = toFloat64s(nil)
	assert.Error(t, err)
}

func TestFlattenGrid_PadsRaggedRows(t *testing.T) {
	got := flattenGrid([][]float64{{1, 2}, {3}}, 2, 2)
	assert.Equal(t, []float32{1, 2, 3, FillValue}, got)
}
