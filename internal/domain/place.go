package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrGeocodingDisabled is returned by forward lookups when no geocoder is configured.
var ErrGeocodingDisabled = errors.New("geocoding is disabled")

// PlaceStatus describes how a display name was obtained.
type PlaceStatus string

const (
	PlaceResolved PlaceStatus = "resolved"
	PlaceFallback PlaceStatus = "fallback" // no match, or geocoding disabled
	PlaceFailed   PlaceStatus = "failed"   // geocoder returned an error
)

// PlaceName is the outcome of a reverse lookup. Name is always usable for
// display; Err is set only when Status is PlaceFailed.
type PlaceName struct {
	Name   string
	Status PlaceStatus
	Err    error
}

// FallbackPlaceName synthesizes a display name for coordinates that could not be resolved.
func FallbackPlaceName(lat, lon float64) string {
	return fmt.Sprintf("Ocean (Lat:%.2f, Lon:%.2f)", lat, lon)
}

// PlaceResolver maps coordinates to display names and place names to
// coordinates. Caching and pacing belong to the wrapped Geocoder.
type PlaceResolver struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewPlaceResolver creates a resolver. A nil geocoder disables lookups: every
// reverse lookup falls back and forward lookups return ErrGeocodingDisabled.
func NewPlaceResolver(geocoder Geocoder, logger *slog.Logger) *PlaceResolver {
	return &PlaceResolver{geocoder: geocoder, logger: logger}
}

// Enabled reports whether a geocoder is configured.
func (r *PlaceResolver) Enabled() bool {
	return r.geocoder != nil
}

// ReverseLookup never fails: geocoder errors and empty results both produce
// the fallback name, distinguished by Status.
func (r *PlaceResolver) ReverseLookup(ctx context.Context, lat, lon float64) PlaceName {
	if r.geocoder == nil {
		return PlaceName{Name: FallbackPlaceName(lat, lon), Status: PlaceFallback}
	}

	result, err := r.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		r.logger.Warn("reverse geocoding failed",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return PlaceName{Name: FallbackPlaceName(lat, lon), Status: PlaceFailed, Err: err}
	}

	name := result.PlaceName
	if name == "" {
		name = result.FormattedAddress
	}
	if name == "" {
		return PlaceName{Name: FallbackPlaceName(lat, lon), Status: PlaceFallback}
	}
	return PlaceName{Name: name, Status: PlaceResolved}
}

// ForwardLookup resolves a place name to coordinates. found is false when the
// geocoder has no match; err is set when the lookup itself failed.
func (r *PlaceResolver) ForwardLookup(ctx context.Context, place string) (GeocodingResult, bool, error) {
	if r.geocoder == nil {
		return GeocodingResult{}, false, ErrGeocodingDisabled
	}
	place = strings.TrimSpace(place)
	if place == "" {
		return GeocodingResult{}, false, nil
	}

	result, err := r.geocoder.ForwardGeocode(ctx, place)
	if err != nil {
		r.logger.Warn("forward geocoding failed",
			"place", place,
			"error", err,
		)
		return GeocodingResult{}, false, fmt.Errorf("forward geocode %q: %w", place, err)
	}
	if !result.Found() {
		return GeocodingResult{}, false, nil
	}
	return result, true, nil
}
