package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/airlens-api/internal/domain"
	"github.com/couchcryptid/airlens-api/internal/observability"
)

// GridReader loads the raw grid from its source.
type GridReader interface {
	ReadGrid(ctx context.Context) (domain.GridSource, error)
}

// Publisher forwards a scored dataset downstream.
type Publisher interface {
	Publish(ctx context.Context, ds *domain.Dataset) (int, error)
}

// Loader runs the startup load: read the grid, ingest it, score it, and wrap
// the result in an immutable dataset.
type Loader struct {
	reader  GridReader
	logger  *slog.Logger
	metrics *observability.Metrics

	// Publish retry policy.
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewLoader creates a Loader reading from r.
func NewLoader(r GridReader, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		reader:         r,
		logger:         logger,
		metrics:        metrics,
		maxAttempts:    3,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
	}
}

// Load reads and scores the grid. Any error is fatal for the service: a
// missing file, a missing gas, or a grid with no complete cell.
func (l *Loader) Load(ctx context.Context) (*domain.Dataset, error) {
	start := time.Now()

	src, err := l.reader.ReadGrid(ctx)
	if err != nil {
		return nil, fmt.Errorf("read grid: %w", err)
	}
	l.logger.Info("grid read", "rows", len(src.Lat), "cols", len(src.Lon))

	samples, stats, err := domain.Ingest(src)
	if err != nil {
		return nil, fmt.Errorf("ingest grid: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("ingest grid: %w: all %d cells have a missing gas", domain.ErrEmptyDataset, stats.Cells)
	}

	scored, maxima, err := domain.Score(samples)
	if err != nil {
		return nil, fmt.Errorf("score samples: %w", err)
	}
	for _, g := range domain.AllGases {
		if maxima.Get(g) <= 0 {
			l.logger.Warn("gas maximum is not positive, its score is zero everywhere",
				"gas", g.String(),
				"max", maxima.Get(g),
			)
		}
	}

	ds, err := domain.NewDataset(scored, maxima, stats)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	l.metrics.SamplesLoaded.Set(float64(ds.Len()))
	l.metrics.CellsDropped.Set(float64(stats.Dropped))
	l.metrics.LoadDuration.Set(elapsed.Seconds())
	l.metrics.DatasetReady.Set(1)
	l.logger.Info("dataset loaded",
		"cells", stats.Cells,
		"samples", stats.Kept,
		"dropped", stats.Dropped,
		"duration", elapsed,
	)
	return ds, nil
}

// Publish sends the dataset to p, retrying with exponential backoff. A failed
// publish is logged and does not affect serving.
func (l *Loader) Publish(ctx context.Context, p Publisher, ds *domain.Dataset) error {
	backoff := l.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		n, err := p.Publish(ctx, ds)
		if err == nil {
			l.logger.Info("dataset published", "samples", n, "attempt", attempt)
			return nil
		}
		lastErr = err
		l.logger.Warn("publish dataset failed",
			"error", err,
			"attempt", attempt,
			"published", n,
		)
		if attempt == l.maxAttempts || !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, l.maxBackoff)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("publish dataset: %w", lastErr)
}
