package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrEmptyDataset is returned when a dataset would hold no samples.
var ErrEmptyDataset = errors.New("dataset is empty")

// Dataset is the scored, read-only sample collection. It is built once at
// startup and shared by reference; none of its methods mutate it, so it is
// safe for concurrent use without locking.
type Dataset struct {
	samples  []Sample
	maxima   Maxima
	stats    IngestStats
	loadedAt time.Time
}

// NewDataset takes ownership of scored samples. Callers must not modify the
// slice afterwards.
func NewDataset(samples []Sample, maxima Maxima, stats IngestStats) (*Dataset, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyDataset
	}
	return &Dataset{
		samples:  samples,
		maxima:   maxima,
		stats:    stats,
		loadedAt: clock.Now().UTC(),
	}, nil
}

// BuildDataset runs both ingestion phases over src and wraps the result.
func BuildDataset(src GridSource) (*Dataset, error) {
	samples, stats, err := Ingest(src)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrEmptyDataset
	}
	scored, maxima, err := Score(samples)
	if err != nil {
		return nil, err
	}
	return NewDataset(scored, maxima, stats)
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.samples) }

// Maxima returns the per-gas normalization maxima.
func (d *Dataset) Maxima() Maxima { return d.maxima }

// IngestStats returns the cell counts recorded during ingestion.
func (d *Dataset) IngestStats() IngestStats { return d.stats }

// LoadedAt returns when the dataset was built.
func (d *Dataset) LoadedAt() time.Time { return d.loadedAt }

// At returns the i-th sample in ingestion order.
func (d *Dataset) At(i int) Sample {
	return d.samples[i]
}

// Samples returns a copy of every sample in ingestion order.
func (d *Dataset) Samples() []Sample {
	out := make([]Sample, len(d.samples))
	copy(out, d.samples)
	return out
}

// Dump returns every stride-th sample in ingestion order, starting at index 0.
// A stride below 1 is treated as 1. The result has ceil(n/stride) elements.
func (d *Dataset) Dump(stride int) []Sample {
	if stride < 1 {
		stride = 1
	}
	out := make([]Sample, 0, (len(d.samples)+stride-1)/stride)
	for i := 0; i < len(d.samples); i += stride {
		out = append(out, d.samples[i])
	}
	return out
}

// Top returns the n samples with the highest composite score in descending
// order. Equal scores keep ingestion order. n <= 0 yields an empty slice and n
// larger than the dataset yields every sample.
func (d *Dataset) Top(n int) []Sample {
	return d.topBy(n, func(s Sample) float64 { return s.Composite })
}

// TopByGas ranks samples by the raw value of a single gas.
func (d *Dataset) TopByGas(g GasKind, n int) []Sample {
	return d.topBy(n, func(s Sample) float64 { return s.Values[g] })
}

func (d *Dataset) topBy(n int, key func(Sample) float64) []Sample {
	if n <= 0 {
		return []Sample{}
	}
	ranked := d.Samples()
	sort.SliceStable(ranked, func(i, j int) bool {
		return key(ranked[i]) > key(ranked[j])
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n:n]
}

// Nearest returns the sample with the smallest squared planar distance to
// (lat, lon). No antimeridian or great-circle correction is applied. The first
// sample in ingestion order wins ties.
func (d *Dataset) Nearest(lat, lon float64) (Sample, error) {
	if len(d.samples) == 0 {
		return Sample{}, ErrEmptyDataset
	}
	target := orb.Point{lon, lat}
	best := 0
	bestDist := planar.DistanceSquared(target, orb.Point{d.samples[0].Lon, d.samples[0].Lat})
	for i := 1; i < len(d.samples); i++ {
		dist := planar.DistanceSquared(target, orb.Point{d.samples[i].Lon, d.samples[i].Lat})
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return d.samples[best], nil
}
