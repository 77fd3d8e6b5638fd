// Package http exposes the air-quality query engine over a JSON HTTP API,
// together with health, readiness, and Prometheus metrics endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/couchcryptid/airlens-api/internal/domain"
	"github.com/couchcryptid/airlens-api/internal/observability"
	"github.com/couchcryptid/airlens-api/internal/query"
)

// QueryService is the read side the API handlers call into.
// *query.Engine satisfies it.
type QueryService interface {
	Dump(stride int) []domain.Sample
	GasDump(gas domain.GasKind, stride int) []query.GasReading
	TopPolluted(ctx context.Context, n int) []query.RankedSample
	TopPollutedByGas(ctx context.Context, gas domain.GasKind, n int) []query.RankedSample
	Search(ctx context.Context, place string) (query.SearchResult, error)
	Stats() query.Stats
}

// Options configures the API surface.
type Options struct {
	Addr           string
	DumpStride     int
	TopDefault     int
	AllowedOrigins []string
}

// Server exposes the API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	queries    QueryService
	opts       Options
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /aqi, /polluted, /search, /stats,
// /healthz, /readyz, and /metrics routes.
func NewServer(opts Options, queries QueryService, ready sharedobs.ReadinessChecker, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if opts.DumpStride < 1 {
		opts.DumpStride = 1
	}
	opts.TopDefault = clampTop(opts.TopDefault)

	mux := http.NewServeMux()

	s := &Server{
		queries: queries,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}

	s.route(mux, "GET /aqi", "/aqi", s.handleAQI)
	s.route(mux, "GET /polluted", "/polluted", s.handlePolluted)
	s.route(mux, "GET /search", "/search", s.handleSearch)
	s.route(mux, "GET /stats", "/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})

	s.httpServer = &http.Server{
		Addr:    opts.Addr,
		Handler: accessLog(logger)(c.Handler(mux)),
		// /polluted resolves names one at a time behind the geocoder pacing.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.HandlerFunc) {
	mux.Handle(pattern, instrument(name, s.metrics, h))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
