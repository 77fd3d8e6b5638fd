package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "data/data_sfc.nc", cfg.DataFile)
	assert.Equal(t, "latitude", cfg.LatVariable)
	assert.Equal(t, "longitude", cfg.LonVariable)
	assert.Equal(t, GasVariables{CO: "tcco", NO2: "tcno2", O3: "gtco3", SO2: "tcso2"}, cfg.GasVariables)
	assert.Equal(t, 50, cfg.DumpStride)
	assert.Equal(t, 10, cfg.TopDefault)

	assert.True(t, cfg.GeocoderEnabled)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.NominatimURL)
	assert.Equal(t, "airlens_app", cfg.NominatimUserAgent)
	assert.Equal(t, 10*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, time.Second, cfg.GeocoderMinInterval)
	assert.Equal(t, 4096, cfg.GeocoderCacheSize)
	assert.Equal(t, 24*time.Hour, cfg.GeocoderCacheTTL)

	assert.False(t, cfg.RedisEnabled())
	assert.Zero(t, cfg.RedisDB)
	assert.False(t, cfg.KafkaEnabled())
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "air-quality-samples", cfg.KafkaSamplesTopic)
	assert.Equal(t, 50, cfg.BatchSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://airlens.example, http://localhost:5173")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("DATA_FILE", "/srv/cams.nc")
	t.Setenv("NO2_VARIABLE", "no2_col")
	t.Setenv("DUMP_STRIDE", "10")
	t.Setenv("TOP_DEFAULT", "25")
	t.Setenv("GEOCODER_ENABLED", "false")
	t.Setenv("GEOCODER_TIMEOUT", "3s")
	t.Setenv("GEOCODER_MIN_INTERVAL", "0s")
	t.Setenv("GEOCODER_CACHE_SIZE", "500")
	t.Setenv("GEOCODER_CACHE_TTL", "1h")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SAMPLES_TOPIC", "samples")
	t.Setenv("BATCH_SIZE", "100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"https://airlens.example", "http://localhost:5173"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/srv/cams.nc", cfg.DataFile)
	assert.Equal(t, "no2_col", cfg.GasVariables.NO2)
	assert.Equal(t, "tcco", cfg.GasVariables.CO)
	assert.Equal(t, 10, cfg.DumpStride)
	assert.Equal(t, 25, cfg.TopDefault)
	assert.False(t, cfg.GeocoderEnabled)
	assert.Equal(t, 3*time.Second, cfg.GeocoderTimeout)
	assert.Zero(t, cfg.GeocoderMinInterval)
	assert.Equal(t, 500, cfg.GeocoderCacheSize)
	assert.Equal(t, time.Hour, cfg.GeocoderCacheTTL)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, "secret", cfg.RedisPassword)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "samples", cfg.KafkaSamplesTopic)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidDurations(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"GEOCODER_TIMEOUT", "bad"},
		{"GEOCODER_TIMEOUT", "0s"},
		{"GEOCODER_MIN_INTERVAL", "-1s"},
		{"GEOCODER_CACHE_TTL", "forever"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_InvalidIntegers(t *testing.T) {
	for _, key := range []string{"DUMP_STRIDE", "TOP_DEFAULT", "REDIS_DB"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "-1")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_TopDefaultBound(t *testing.T) {
	t.Setenv("TOP_DEFAULT", "100")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, MaxTop, cfg.TopDefault)

	t.Setenv("TOP_DEFAULT", "101")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOP_DEFAULT")
}

func TestLoad_InvalidCacheSizeFallsBack(t *testing.T) {
	t.Setenv("GEOCODER_CACHE_SIZE", "lots")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.GeocoderCacheSize)
}
