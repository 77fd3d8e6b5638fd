package nominatim

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/airlens-api/internal/domain"
	"github.com/couchcryptid/airlens-api/internal/observability"
)

// SharedCache is an optional second cache tier shared between replicas.
type SharedCache interface {
	Get(ctx context.Context, key string) (domain.GeocodingResult, bool, error)
	Set(ctx context.Context, key string, result domain.GeocodingResult, ttl time.Duration) error
}

// CachedGeocoder wraps a Geocoder with a bounded in-memory LRU cache whose
// entries expire after a TTL, optionally backed by a SharedCache.
//
// Reverse lookups are keyed on coordinates rounded to two decimals, and empty
// reverse results are cached too. Forward lookups are cached only when found.
// Errors are never cached.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	ttl     time.Duration
	shared  SharedCache
	metrics *observability.Metrics
	logger  *slog.Logger
}

// CacheOption customizes a CachedGeocoder.
type CacheOption func(*CachedGeocoder)

// WithClock sets the clock used for entry expiry.
func WithClock(c clockwork.Clock) CacheOption {
	return func(g *CachedGeocoder) { g.cache.clock = c }
}

// WithSharedCache adds a second cache tier consulted on local misses.
func WithSharedCache(s SharedCache) CacheOption {
	return func(g *CachedGeocoder) { g.shared = s }
}

// WithMetrics records cache hits and misses.
func WithMetrics(m *observability.Metrics) CacheOption {
	return func(g *CachedGeocoder) { g.metrics = m }
}

// WithLogger sets the logger for shared cache failures.
func WithLogger(l *slog.Logger) CacheOption {
	return func(g *CachedGeocoder) { g.logger = l }
}

// NewCachedGeocoder creates a cache decorator around a geocoder. A ttl of zero
// keeps entries until they are evicted.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, ttl time.Duration, opts ...CacheOption) *CachedGeocoder {
	g := &CachedGeocoder{
		inner:  inner,
		cache:  newLRUCache(maxEntries, ttl, clockwork.NewRealClock()),
		ttl:    ttl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (c *CachedGeocoder) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	key := forwardKey(query)
	if result, ok := c.lookup(ctx, "forward", key); ok {
		return result, nil
	}
	result, err := c.inner.ForwardGeocode(ctx, query)
	if err != nil {
		return result, err
	}
	// Not-found answers for free-form queries are retried on the next request.
	if result.Found() {
		c.store(ctx, key, result)
	}
	return result, nil
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := reverseKey(lat, lon)
	if result, ok := c.lookup(ctx, "reverse", key); ok {
		return result, nil
	}
	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	c.store(ctx, key, result)
	return result, nil
}

// Len returns the number of entries in the local tier.
func (c *CachedGeocoder) Len() int {
	return c.cache.size()
}

func forwardKey(query string) string {
	return "fwd:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

func reverseKey(lat, lon float64) string {
	return fmt.Sprintf("rev:%.2f,%.2f", lat, lon)
}

func (c *CachedGeocoder) lookup(ctx context.Context, method, key string) (domain.GeocodingResult, bool) {
	if result, ok := c.cache.get(key); ok {
		c.observe(method, "hit")
		return result, true
	}
	if c.shared != nil {
		result, ok, err := c.shared.Get(ctx, key)
		if err != nil {
			c.logger.Warn("shared geocode cache read failed", "key", key, "error", err)
		} else if ok {
			c.observe(method, "shared_hit")
			c.cache.put(key, result)
			return result, true
		}
	}
	c.observe(method, "miss")
	return domain.GeocodingResult{}, false
}

func (c *CachedGeocoder) store(ctx context.Context, key string, result domain.GeocodingResult) {
	c.cache.put(key, result)
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, key, result, c.ttl); err != nil {
		c.logger.Warn("shared geocode cache write failed", "key", key, "error", err)
	}
}

func (c *CachedGeocoder) observe(method, result string) {
	if c.metrics != nil {
		c.metrics.GeocodeCache.WithLabelValues(method, result).Inc()
	}
}

// lruCache is a thread-safe LRU cache for GeocodingResults with per-entry expiry.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     domain.GeocodingResult
	expiresAt time.Time // zero means no expiry
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	if !e.expiresAt.IsZero() && !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		return domain.GeocodingResult{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.clock.Now().Add(c.ttl)
	}

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
