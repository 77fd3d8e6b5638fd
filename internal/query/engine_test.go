package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/airlens-api/internal/domain"
	"github.com/couchcryptid/airlens-api/internal/observability"
)

// --- fakes ---

type fakeGeocoder struct {
	names      map[[2]float64]string
	failAt     map[[2]float64]bool
	forward    domain.GeocodingResult
	forwardErr error
	calls      int
}

func (f *fakeGeocoder) ForwardGeocode(_ context.Context, _ string) (domain.GeocodingResult, error) {
	return f.forward, f.forwardErr
}

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return domain.GeocodingResult{}, err
	}
	key := [2]float64{lat, lon}
	if f.failAt[key] {
		return domain.GeocodingResult{}, context.DeadlineExceeded
	}
	return domain.GeocodingResult{PlaceName: f.names[key]}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fivePoints(t *testing.T) *domain.Dataset {
	t.Helper()
	ds, err := domain.NewDataset([]domain.Sample{
		{Lat: 0, Lon: 0, Composite: 0.2, Values: domain.GasValues{1, 9, 1, 1}},
		{Lat: 1, Lon: 1, Composite: 0.9, Values: domain.GasValues{2, 1, 1, 1}},
		{Lat: 2, Lon: 2, Composite: 0.5, Values: domain.GasValues{3, 5, 1, 1}},
		{Lat: 3, Lon: 3, Composite: 0.9, Values: domain.GasValues{4, 2, 1, 1}},
		{Lat: 4, Lon: 4, Composite: 0.1, Values: domain.GasValues{5, 3, 1, 1}},
	}, domain.Maxima{5, 9, 1, 1}, domain.IngestStats{Cells: 6, Kept: 5, Dropped: 1})
	require.NoError(t, err)
	return ds
}

func newEngine(t *testing.T, geo domain.Geocoder) *Engine {
	t.Helper()
	resolver := domain.NewPlaceResolver(geo, discardLogger())
	return NewEngine(fivePoints(t), resolver, observability.NewMetricsForTesting(), discardLogger())
}

// --- tests ---

func TestEngine_TopPolluted(t *testing.T) {
	geo := &fakeGeocoder{names: map[[2]float64]string{
		{1, 1}: "Alpha",
		{3, 3}: "Gamma",
		{2, 2}: "Beta",
	}}
	e := newEngine(t, geo)

	got := e.TopPolluted(context.Background(), 3)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"Alpha", "Gamma", "Beta"}, []string{got[0].Place.Name, got[1].Place.Name, got[2].Place.Name})
	assert.Equal(t, []float64{0.9, 0.9, 0.5}, []float64{got[0].Composite, got[1].Composite, got[2].Composite})
	assert.Equal(t, 1.0, got[0].Lat, "equal composites keep ingestion order")
	assert.Equal(t, 3, geo.calls)
}

func TestEngine_TopPollutedClamps(t *testing.T) {
	e := newEngine(t, &fakeGeocoder{})

	assert.Empty(t, e.TopPolluted(context.Background(), 0))
	assert.Len(t, e.TopPolluted(context.Background(), 1000), 5)
}

func TestEngine_TopPollutedResolverFailureFallsBack(t *testing.T) {
	geo := &fakeGeocoder{
		names:  map[[2]float64]string{{1, 1}: "Alpha", {2, 2}: "Beta"},
		failAt: map[[2]float64]bool{{3, 3}: true},
	}
	e := newEngine(t, geo)

	got := e.TopPolluted(context.Background(), 3)
	require.Len(t, got, 3)

	assert.Equal(t, "Alpha", got[0].Place.Name)
	assert.Equal(t, "Ocean (Lat:3.00, Lon:3.00)", got[1].Place.Name)
	assert.Equal(t, domain.PlaceFailed, got[1].Place.Status)
	assert.Equal(t, "Beta", got[2].Place.Name)
}

func TestEngine_TopPollutedCancelledContextKeepsRows(t *testing.T) {
	e := newEngine(t, &fakeGeocoder{names: map[[2]float64]string{{1, 1}: "Alpha"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := e.TopPolluted(ctx, 4)
	require.Len(t, got, 4)
	for _, row := range got {
		assert.Equal(t, domain.PlaceFailed, row.Place.Status)
	}
}

func TestEngine_TopPollutedWithoutGeocoder(t *testing.T) {
	e := newEngine(t, nil)

	got := e.TopPolluted(context.Background(), 2)
	require.Len(t, got, 2)
	assert.Equal(t, domain.PlaceFallback, got[0].Place.Status)
	assert.Equal(t, "Ocean (Lat:1.00, Lon:1.00)", got[0].Place.Name)
	assert.False(t, e.Stats().GeocodingEnabled)
}

func TestEngine_TopPollutedByGas(t *testing.T) {
	e := newEngine(t, &fakeGeocoder{})

	got := e.TopPollutedByGas(context.Background(), domain.NO2, 2)
	require.Len(t, got, 2)
	assert.Equal(t, 0.0, got[0].Lat)
	assert.Equal(t, 2.0, got[1].Lat)
}

func TestEngine_Dump(t *testing.T) {
	e := newEngine(t, nil)

	got := e.Dump(2)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{0, 2, 4}, []float64{got[0].Lat, got[1].Lat, got[2].Lat})
}

func TestEngine_GasDump(t *testing.T) {
	e := newEngine(t, nil)

	got := e.GasDump(domain.CO, 2)
	assert.Equal(t, []GasReading{
		{Lat: 0, Lon: 0, Value: 1},
		{Lat: 2, Lon: 2, Value: 3},
		{Lat: 4, Lon: 4, Value: 5},
	}, got)
}

func TestEngine_GasDumpSkipsIncompleteCells(t *testing.T) {
	nan := math.NaN()
	ds, err := domain.BuildDataset(domain.GridSource{
		Lat: []float64{0},
		Lon: []float64{0, 1, 2, 3},
		Gases: map[domain.GasKind][][]float64{
			domain.CO:  {{1, 2, 3, 4}},
			domain.NO2: {{1, nan, 1, 1}},
			domain.O3:  {{1, 1, 1, 1}},
			domain.SO2: {{1, 1, 1, 1}},
		},
	})
	require.NoError(t, err)
	e := NewEngine(ds, nil, observability.NewMetricsForTesting(), discardLogger())

	got := e.GasDump(domain.CO, 2)
	assert.Equal(t, []GasReading{
		{Lat: 0, Lon: 0, Value: 1},
		{Lat: 0, Lon: 3, Value: 4},
	}, got)

	dump := e.Dump(2)
	require.Len(t, dump, len(got))
	for i := range got {
		assert.Equal(t, dump[i].Lon, got[i].Lon)
	}
}

func TestEngine_NearestTo(t *testing.T) {
	e := newEngine(t, nil)

	got, err := e.NearestTo(0.9, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Lat)
}

func TestEngine_Search(t *testing.T) {
	geo := &fakeGeocoder{forward: domain.GeocodingResult{Lat: 2.2, Lon: 1.9, PlaceName: "Beta", FormattedAddress: "Beta, Nowhere"}}
	e := newEngine(t, geo)

	got, err := e.Search(context.Background(), "beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", got.Query)
	assert.Equal(t, 2.2, got.Place.Lat)
	assert.Equal(t, 2.0, got.Sample.Lat)
	assert.Equal(t, 0.5, got.Sample.Composite)
}

func TestEngine_SearchNotFound(t *testing.T) {
	e := newEngine(t, &fakeGeocoder{})

	_, err := e.Search(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrPlaceNotFound)
}

func TestEngine_SearchGeocoderError(t *testing.T) {
	upstream := errors.New("status 502")
	e := newEngine(t, &fakeGeocoder{forwardErr: upstream})

	_, err := e.Search(context.Background(), "Paris")
	assert.ErrorIs(t, err, upstream)
	assert.NotErrorIs(t, err, ErrPlaceNotFound)
}

func TestEngine_SearchDisabled(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.Search(context.Background(), "Paris")
	assert.ErrorIs(t, err, domain.ErrGeocodingDisabled)

	bare := NewEngine(fivePoints(t), nil, observability.NewMetricsForTesting(), discardLogger())
	_, err = bare.Search(context.Background(), "Paris")
	assert.ErrorIs(t, err, domain.ErrGeocodingDisabled)
}

func TestEngine_Stats(t *testing.T) {
	e := newEngine(t, &fakeGeocoder{})

	st := e.Stats()
	assert.Equal(t, 5, st.Samples)
	assert.Equal(t, 6, st.Cells)
	assert.Equal(t, 1, st.Dropped)
	assert.Equal(t, 9.0, st.Maxima.Get(domain.NO2))
	assert.True(t, st.GeocodingEnabled)
	assert.WithinDuration(t, time.Now(), st.LoadedAt, time.Minute)
}

func TestEngine_CheckReadiness(t *testing.T) {
	assert.NoError(t, newEngine(t, nil).CheckReadiness(context.Background()))

	empty := NewEngine(nil, nil, observability.NewMetricsForTesting(), discardLogger())
	assert.Error(t, empty.CheckReadiness(context.Background()))
}
