package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrMissingGas is returned when a tracked gas has no grid at all.
var ErrMissingGas = errors.New("missing gas grid")

// IngestStats reports how many grid cells were visited and kept.
type IngestStats struct {
	Cells   int
	Kept    int
	Dropped int
}

// Ingest flattens a GridSource into samples in row-major order (latitude
// outer, longitude inner). A cell is dropped when any gas is NaN, infinite,
// or outside a ragged gas array. Composite scores are left at zero; see Score.
func Ingest(src GridSource) ([]Sample, IngestStats, error) {
	var grids [GasCount][][]float64
	for _, g := range AllGases {
		grid, ok := src.Gases[g]
		if !ok || grid == nil {
			return nil, IngestStats{}, fmt.Errorf("%w: %s", ErrMissingGas, g)
		}
		grids[g] = grid
	}

	stats := IngestStats{Cells: src.Cells()}
	samples := make([]Sample, 0, stats.Cells)

	for row, lat := range src.Lat {
		for col, lon := range src.Lon {
			values, ok := cellValues(&grids, row, col)
			if !ok {
				stats.Dropped++
				continue
			}
			samples = append(samples, Sample{Lat: lat, Lon: lon, Values: values})
		}
	}

	stats.Kept = len(samples)
	return samples, stats, nil
}

// cellValues reads one value per gas at (row, col). It reports false if any
// value is unavailable.
func cellValues(grids *[GasCount][][]float64, row, col int) (GasValues, bool) {
	var values GasValues
	for g, grid := range grids {
		if row >= len(grid) || col >= len(grid[row]) {
			return GasValues{}, false
		}
		v := grid[row][col]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return GasValues{}, false
		}
		values[g] = v
	}
	return values, true
}
