package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/airlens-api/internal/domain"
	"github.com/couchcryptid/airlens-api/internal/observability"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("nominatim unavailable")

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// MinInterval is the minimum spacing between upstream requests. The public
	// instance allows one request per second.
	MinInterval time.Duration
}

// Client implements domain.Geocoder using the Nominatim search and reverse APIs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim geocoding client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL:   baseURL,
		userAgent: opts.UserAgent,
		limiter:   newLimiter(opts.MinInterval),
		breaker:   newBreaker("nominatim", logger),
		metrics:   metrics,
		logger:    logger,
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// newBreaker trips after five consecutive failures and probes again after 30s.
// Cancelled requests do not count against the upstream.
func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

// ForwardGeocode converts a free-form place query to coordinates.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	params := url.Values{
		"q":               {query},
		"format":          {"jsonv2"},
		"limit":           {"1"},
		"addressdetails":  {"1"},
		"accept-language": {"en"},
	}

	body, err := c.fetch(ctx, "forward", "/search", params)
	if err != nil {
		return domain.GeocodingResult{}, err
	}

	var places []place
	if err := json.Unmarshal(body, &places); err != nil {
		c.record("forward", "error")
		return domain.GeocodingResult{}, fmt.Errorf("decode search response: %w", err)
	}
	if len(places) == 0 {
		c.record("forward", "empty")
		return domain.GeocodingResult{}, nil
	}
	return c.toResult("forward", places[0])
}

// ReverseGeocode converts coordinates to place details. Coordinates with no
// nearby feature, such as open ocean, return an empty result.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	params := url.Values{
		"lat":             {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":             {strconv.FormatFloat(lon, 'f', 6, 64)},
		"format":          {"jsonv2"},
		"zoom":            {"10"},
		"addressdetails":  {"1"},
		"accept-language": {"en"},
	}

	body, err := c.fetch(ctx, "reverse", "/reverse", params)
	if err != nil {
		return domain.GeocodingResult{}, err
	}

	var p place
	if err := json.Unmarshal(body, &p); err != nil {
		c.record("reverse", "error")
		return domain.GeocodingResult{}, fmt.Errorf("decode reverse response: %w", err)
	}
	if p.Error != "" || (p.Lat == "" && p.DisplayName == "") {
		c.record("reverse", "empty")
		return domain.GeocodingResult{}, nil
	}
	return c.toResult("reverse", p)
}

func (c *Client) toResult(method string, p place) (domain.GeocodingResult, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		c.record(method, "error")
		return domain.GeocodingResult{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		c.record(method, "error")
		return domain.GeocodingResult{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}

	name := p.Address.shortName()
	if name == "" {
		name = p.Name
	}

	c.record(method, "success")
	return domain.GeocodingResult{
		Lat:              lat,
		Lon:              lon,
		FormattedAddress: p.DisplayName,
		PlaceName:        name,
		Confidence:       min(max(p.Importance, 0), 1),
	}, nil
}

// fetch waits for the pacing limiter, then performs the request through the
// circuit breaker and returns the response body.
func (c *Client) fetch(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s geocode pacing: %w", method, err)
	}

	fullURL := c.baseURL + path + "?" + params.Encode()
	start := time.Now()
	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, fullURL, method)
	})
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err != nil {
		c.record(method, "error")
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return body.([]byte), nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) record(method, outcome string) {
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
}

// Nominatim API response types.

type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Name        string  `json:"name"`
	Importance  float64 `json:"importance"`
	Address     address `json:"address"`
	Error       string  `json:"error"`
}

type address struct {
	City    string `json:"city"`
	Town    string `json:"town"`
	Village string `json:"village"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// shortName picks the most specific populated place level.
func (a address) shortName() string {
	for _, s := range []string{a.City, a.Town, a.Village, a.State, a.Country} {
		if s != "" {
			return s
		}
	}
	return ""
}
