package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/airlens-api/internal/domain"
)

// DefaultPrefix namespaces geocode entries in a shared Redis database.
const DefaultPrefix = "airlens:geocode:"

// NameStore keeps geocoding results in Redis so replicas share lookups.
// It implements nominatim.SharedCache.
type NameStore struct {
	client *goredis.Client
	prefix string
}

// Open connects to Redis and verifies the connection with a PING.
func Open(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewNameStore wraps a connected client. An empty prefix uses DefaultPrefix.
func NewNameStore(client *goredis.Client, prefix string) *NameStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &NameStore{client: client, prefix: prefix}
}

// Get returns the cached result for key. ok is false on a miss.
func (s *NameStore) Get(ctx context.Context, key string) (domain.GeocodingResult, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.GeocodingResult{}, false, nil
	}
	if err != nil {
		return domain.GeocodingResult{}, false, fmt.Errorf("redis get: %w", err)
	}
	result, err := decodeResult(data)
	if err != nil {
		return domain.GeocodingResult{}, false, err
	}
	return result, true, nil
}

// Set stores result under key. A zero ttl keeps the entry until Redis evicts it.
func (s *NameStore) Set(ctx context.Context, key string, result domain.GeocodingResult, ttl time.Duration) error {
	data, err := encodeResult(result)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CheckReadiness pings Redis.
func (s *NameStore) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *NameStore) Close() error {
	return s.client.Close()
}

type cachedResult struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	PlaceName        string  `json:"place_name,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
}

func encodeResult(r domain.GeocodingResult) ([]byte, error) {
	data, err := json.Marshal(cachedResult(r))
	if err != nil {
		return nil, fmt.Errorf("encode geocode result: %w", err)
	}
	return data, nil
}

func decodeResult(data []byte) (domain.GeocodingResult, error) {
	var c cachedResult
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode geocode result: %w", err)
	}
	return domain.GeocodingResult(c), nil
}
