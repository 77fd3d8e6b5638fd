package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// MaxTop bounds the number of ranked rows one request may ask for. Every row
// costs one paced geocoder call.
const MaxTop = 100

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr           string
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string
	ShutdownTimeout    time.Duration

	// Grid source.
	DataFile     string
	LatVariable  string
	LonVariable  string
	GasVariables GasVariables

	// Query defaults.
	DumpStride int
	TopDefault int

	// Nominatim geocoding configuration.
	GeocoderEnabled     bool
	NominatimURL        string
	NominatimUserAgent  string
	GeocoderTimeout     time.Duration
	GeocoderMinInterval time.Duration
	GeocoderCacheSize   int
	GeocoderCacheTTL    time.Duration

	// Optional shared place name cache. Disabled when RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Optional sample publisher. Disabled when KafkaBrokers is empty.
	KafkaBrokers      []string
	KafkaSamplesTopic string
	BatchSize         int
}

// GasVariables names the NetCDF variable holding each gas.
type GasVariables struct {
	CO  string
	NO2 string
	O3  string
	SO2 string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	geocoderTimeout, err := parsePositiveDuration("GEOCODER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	minInterval, err := parseDuration("GEOCODER_MIN_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("GEOCODER_CACHE_TTL", "24h")
	if err != nil {
		return nil, err
	}

	dumpStride, err := parsePositiveInt("DUMP_STRIDE", 50)
	if err != nil {
		return nil, err
	}
	topDefault, err := parsePositiveInt("TOP_DEFAULT", 10)
	if err != nil {
		return nil, err
	}
	if topDefault > MaxTop {
		return nil, fmt.Errorf("invalid TOP_DEFAULT: must be at most %d", MaxTop)
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	var brokers []string
	if s := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: splitList(sharedcfg.EnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,

		DataFile:    sharedcfg.EnvOrDefault("DATA_FILE", "data/data_sfc.nc"),
		LatVariable: sharedcfg.EnvOrDefault("LAT_VARIABLE", "latitude"),
		LonVariable: sharedcfg.EnvOrDefault("LON_VARIABLE", "longitude"),
		GasVariables: GasVariables{
			CO:  sharedcfg.EnvOrDefault("CO_VARIABLE", "tcco"),
			NO2: sharedcfg.EnvOrDefault("NO2_VARIABLE", "tcno2"),
			O3:  sharedcfg.EnvOrDefault("O3_VARIABLE", "gtco3"),
			SO2: sharedcfg.EnvOrDefault("SO2_VARIABLE", "tcso2"),
		},

		DumpStride: dumpStride,
		TopDefault: topDefault,

		GeocoderEnabled:     os.Getenv("GEOCODER_ENABLED") != "false",
		NominatimURL:        sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent:  sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "airlens_app"),
		GeocoderTimeout:     geocoderTimeout,
		GeocoderMinInterval: minInterval,
		GeocoderCacheSize:   parseCacheSize(),
		GeocoderCacheTTL:    cacheTTL,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		KafkaBrokers:      brokers,
		KafkaSamplesTopic: sharedcfg.EnvOrDefault("KAFKA_SAMPLES_TOPIC", "air-quality-samples"),
		BatchSize:         batchSize,
	}

	if cfg.DataFile == "" {
		return nil, errors.New("DATA_FILE is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSamplesTopic == "" {
		return nil, errors.New("KAFKA_SAMPLES_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.GeocoderEnabled && cfg.NominatimUserAgent == "" {
		return nil, errors.New("NOMINATIM_USER_AGENT is required when geocoding is enabled")
	}

	return cfg, nil
}

// KafkaEnabled reports whether scored samples should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// RedisEnabled reports whether the shared place name cache is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := parseDuration(key, def)
	if err != nil || d == 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 4096
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
