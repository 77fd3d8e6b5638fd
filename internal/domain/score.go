package domain

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrNoSamples is returned when scoring an empty collection.
var ErrNoSamples = errors.New("no samples to score")

// Maxima holds the global per-gas maximum used for normalization.
type Maxima GasValues

// Get returns the maximum for gas g.
func (m Maxima) Get(g GasKind) float64 {
	return m[g]
}

// Score computes per-gas maxima over the whole collection and returns a new
// slice with every sample's Composite set to the mean of its normalized gas
// scores. The input is not modified.
//
// A gas whose maximum is zero, negative or non-finite scores 0 for every
// sample, so the composite never becomes NaN.
func Score(samples []Sample) ([]Sample, Maxima, error) {
	if len(samples) == 0 {
		return nil, Maxima{}, ErrNoSamples
	}

	var maxima Maxima
	column := make([]float64, len(samples))
	for _, g := range AllGases {
		for i := range samples {
			column[i] = samples[i].Values[g]
		}
		maxima[g] = floats.Max(column)
	}

	scored := make([]Sample, len(samples))
	normalized := make([]float64, GasCount)
	for i, s := range samples {
		for _, g := range AllGases {
			normalized[g] = normalize(s.Values[g], maxima[g])
		}
		s.Composite = floats.Sum(normalized) / GasCount
		scored[i] = s
	}
	return scored, maxima, nil
}

func normalize(v, maximum float64) float64 {
	if maximum <= 0 || math.IsInf(maximum, 0) || math.IsNaN(maximum) {
		return 0
	}
	return v / maximum
}
