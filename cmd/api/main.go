package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/airlens-api/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/airlens-api/internal/adapter/kafka"
	"github.com/couchcryptid/airlens-api/internal/adapter/netcdf"
	"github.com/couchcryptid/airlens-api/internal/adapter/nominatim"
	redisadapter "github.com/couchcryptid/airlens-api/internal/adapter/redis"
	"github.com/couchcryptid/airlens-api/internal/config"
	"github.com/couchcryptid/airlens-api/internal/domain"
	"github.com/couchcryptid/airlens-api/internal/observability"
	"github.com/couchcryptid/airlens-api/internal/pipeline"
	"github.com/couchcryptid/airlens-api/internal/query"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load and score the grid before serving anything.
	reader := netcdf.NewReader(cfg.DataFile, netcdf.VariablesFromConfig(cfg), logger)
	loader := pipeline.NewLoader(reader, logger, metrics)
	dataset, err := loader.Load(ctx)
	if err != nil {
		logger.Error("failed to load dataset", "file", cfg.DataFile, "error", err)
		os.Exit(1)
	}

	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, metrics, logger)
		if err := loader.Publish(ctx, writer, dataset); err != nil {
			logger.Warn("dataset not published", "topic", cfg.KafkaSamplesTopic, "error", err)
		}
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	// Initialize geocoder (feature-flagged via GEOCODER_ENABLED).
	var geocoder domain.Geocoder
	var nameStore *redisadapter.NameStore
	if cfg.GeocoderEnabled {
		client := nominatim.NewClient(nominatim.Options{
			BaseURL:     cfg.NominatimURL,
			UserAgent:   cfg.NominatimUserAgent,
			Timeout:     cfg.GeocoderTimeout,
			MinInterval: cfg.GeocoderMinInterval,
		}, metrics, logger)

		cacheOpts := []nominatim.CacheOption{nominatim.WithMetrics(metrics), nominatim.WithLogger(logger)}
		if cfg.RedisEnabled() {
			rdb, err := redisadapter.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				logger.Warn("redis unavailable, using local name cache only", "addr", cfg.RedisAddr, "error", err)
			} else {
				nameStore = redisadapter.NewNameStore(rdb, redisadapter.DefaultPrefix)
				cacheOpts = append(cacheOpts, nominatim.WithSharedCache(nameStore))
				logger.Info("shared name cache enabled", "addr", cfg.RedisAddr)
			}
		}

		geocoder = nominatim.NewCachedGeocoder(client, cfg.GeocoderCacheSize, cfg.GeocoderCacheTTL, cacheOpts...)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("nominatim geocoding enabled",
			"url", cfg.NominatimURL,
			"cache_size", cfg.GeocoderCacheSize,
			"cache_ttl", cfg.GeocoderCacheTTL,
			"min_interval", cfg.GeocoderMinInterval,
		)
	} else {
		logger.Info("nominatim geocoding disabled")
	}

	places := domain.NewPlaceResolver(geocoder, logger)
	engine := query.NewEngine(dataset, places, metrics, logger)

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:           cfg.HTTPAddr,
		DumpStride:     cfg.DumpStride,
		TopDefault:     cfg.TopDefault,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, engine, engine, metrics, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if nameStore != nil {
		if err := nameStore.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
