package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
// The zero value means the provider found nothing.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider importance score
}

// Found reports whether the provider returned a match.
func (r GeocodingResult) Found() bool {
	return r != GeocodingResult{}
}

// Geocoder converts between place names and coordinates.
type Geocoder interface {
	// ForwardGeocode converts a free-form place query to coordinates.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)

	// ReverseGeocode converts coordinates to place details.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
