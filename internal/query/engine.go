// Package query answers read-only questions over the scored dataset: decimated
// dumps, top-N rankings with display names, and nearest-sample search.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/airlens-api/internal/domain"
	"github.com/couchcryptid/airlens-api/internal/observability"
)

// ErrPlaceNotFound is returned by Search when the place name has no match.
var ErrPlaceNotFound = errors.New("place not found")

// PlaceLookup resolves display names and place coordinates.
// *domain.PlaceResolver satisfies it.
type PlaceLookup interface {
	ReverseLookup(ctx context.Context, lat, lon float64) domain.PlaceName
	ForwardLookup(ctx context.Context, place string) (domain.GeocodingResult, bool, error)
}

// RankedSample is a top-N row with its display name.
type RankedSample struct {
	domain.Sample
	Place domain.PlaceName
}

// GasReading is a single-gas view of a sample.
type GasReading struct {
	Lat   float64
	Lon   float64
	Value float64
}

// SearchResult pairs a geocoded place with its nearest sample.
type SearchResult struct {
	Query  string
	Place  domain.GeocodingResult
	Sample domain.Sample
}

// Stats summarizes the loaded dataset.
type Stats struct {
	Samples          int
	Cells            int
	Dropped          int
	Maxima           domain.Maxima
	LoadedAt         time.Time
	GeocodingEnabled bool
}

// Engine serves queries over an immutable dataset. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	dataset *domain.Dataset
	places  PlaceLookup
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewEngine creates an engine over ds. places may be nil, in which case every
// ranked row gets a fallback name and Search reports geocoding as disabled.
func NewEngine(ds *domain.Dataset, places PlaceLookup, metrics *observability.Metrics, logger *slog.Logger) *Engine {
	return &Engine{dataset: ds, places: places, metrics: metrics, logger: logger}
}

// CheckReadiness returns nil once a non-empty dataset is attached.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if e.dataset == nil || e.dataset.Len() == 0 {
		return errors.New("dataset not loaded")
	}
	return nil
}

// Dump returns every stride-th sample in ingestion order.
func (e *Engine) Dump(stride int) []domain.Sample {
	return e.dataset.Dump(stride)
}

// GasDump is Dump reduced to a single gas. It decimates the same complete-cell
// samples as Dump, so rows line up index for index.
func (e *Engine) GasDump(gas domain.GasKind, stride int) []GasReading {
	samples := e.dataset.Dump(stride)
	out := make([]GasReading, len(samples))
	for i, s := range samples {
		out[i] = GasReading{Lat: s.Lat, Lon: s.Lon, Value: s.Value(gas)}
	}
	return out
}

// TopPolluted returns the n highest-composite samples with display names.
// Names are resolved one at a time; a failed lookup yields a fallback name and
// never drops the row, so the result always has min(n, size) rows.
func (e *Engine) TopPolluted(ctx context.Context, n int) []RankedSample {
	return e.withPlaces(ctx, e.dataset.Top(n))
}

// TopPollutedByGas ranks by the raw value of one gas instead of the composite.
func (e *Engine) TopPollutedByGas(ctx context.Context, gas domain.GasKind, n int) []RankedSample {
	return e.withPlaces(ctx, e.dataset.TopByGas(gas, n))
}

func (e *Engine) withPlaces(ctx context.Context, samples []domain.Sample) []RankedSample {
	out := make([]RankedSample, len(samples))
	for i, s := range samples {
		place := e.reverseLookup(ctx, s)
		e.metrics.PlaceNames.WithLabelValues(string(place.Status)).Inc()
		out[i] = RankedSample{Sample: s, Place: place}
	}
	return out
}

func (e *Engine) reverseLookup(ctx context.Context, s domain.Sample) domain.PlaceName {
	if e.places == nil {
		return domain.PlaceName{Name: domain.FallbackPlaceName(s.Lat, s.Lon), Status: domain.PlaceFallback}
	}
	return e.places.ReverseLookup(ctx, s.Lat, s.Lon)
}

// NearestTo returns the sample closest to (lat, lon) on the flat lat/lon plane.
func (e *Engine) NearestTo(lat, lon float64) (domain.Sample, error) {
	return e.dataset.Nearest(lat, lon)
}

// Search geocodes a place name and returns the nearest sample to it.
func (e *Engine) Search(ctx context.Context, place string) (SearchResult, error) {
	if e.places == nil {
		return SearchResult{}, domain.ErrGeocodingDisabled
	}
	geo, found, err := e.places.ForwardLookup(ctx, place)
	if err != nil {
		return SearchResult{}, err
	}
	if !found {
		return SearchResult{}, fmt.Errorf("%w: %q", ErrPlaceNotFound, place)
	}

	sample, err := e.dataset.Nearest(geo.Lat, geo.Lon)
	if err != nil {
		return SearchResult{}, err
	}
	e.logger.Debug("search resolved",
		"query", place,
		"lat", geo.Lat,
		"lon", geo.Lon,
		"grid_lat", sample.Lat,
		"grid_lon", sample.Lon,
	)
	return SearchResult{Query: place, Place: geo, Sample: sample}, nil
}

// Stats describes the loaded dataset.
func (e *Engine) Stats() Stats {
	st := e.dataset.IngestStats()
	return Stats{
		Samples:          e.dataset.Len(),
		Cells:            st.Cells,
		Dropped:          st.Dropped,
		Maxima:           e.dataset.Maxima(),
		LoadedAt:         e.dataset.LoadedAt(),
		GeocodingEnabled: e.geocodingEnabled(),
	}
}

func (e *Engine) geocodingEnabled() bool {
	if e.places == nil {
		return false
	}
	if p, ok := e.places.(interface{ Enabled() bool }); ok {
		return p.Enabled()
	}
	return true
}
