// Command gengrid writes a synthetic air-quality grid in NetCDF classic
// format. The output matches the layout the API loads, so it can stand in for
// a real CAMS download during local development and tests.
//
// Usage:
//
//	go run ./cmd/gengrid -out data/data_sfc.nc -rows 181 -cols 360 -missing 0.05
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"

	"github.com/couchcryptid/airlens-api/internal/adapter/netcdf"
	"github.com/couchcryptid/airlens-api/internal/domain"
)

// Typical total-column magnitudes in kg m-2.
var baseline = map[domain.GasKind]float64{
	domain.CO:  1.5e-3,
	domain.NO2: 2.0e-5,
	domain.O3:  6.5e-3,
	domain.SO2: 5.0e-6,
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the NetCDF grid")
	rows := flag.Int("rows", 181, "number of latitude rows")
	cols := flag.Int("cols", 360, "number of longitude columns")
	missing := flag.Float64("missing", 0.02, "fraction of cells with a missing gas")
	seed := flag.Uint64("seed", 42, "random seed for reproducible output")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *rows < 1 || *cols < 1 {
		return fmt.Errorf("rows and cols must be positive, got %d x %d", *rows, *cols)
	}

	src := synthesize(*rows, *cols, *missing, rand.New(rand.NewPCG(*seed, *seed)))

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close() //nolint:errcheck // closed explicitly below on success

	if err := netcdf.WriteGrid(f, src, netcdf.DefaultVariables()); err != nil {
		return fmt.Errorf("write grid: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *out, err)
	}

	log.Printf("wrote %d x %d grid to %s", *rows, *cols, *out)
	return nil
}

// synthesize builds a grid with latitude descending from 90 and longitude
// ascending from 0, the CAMS convention. Pollution peaks in a few hotspots
// and a fraction of cells have one gas set to NaN.
func synthesize(rows, cols int, missing float64, rng *rand.Rand) domain.GridSource {
	latStep := 180.0 / math.Max(float64(rows-1), 1)
	lonStep := 360.0 / float64(cols)

	src := domain.GridSource{
		Lat:   make([]float64, rows),
		Lon:   make([]float64, cols),
		Gases: make(map[domain.GasKind][][]float64, domain.GasCount),
	}
	for r := range rows {
		src.Lat[r] = 90 - float64(r)*latStep
	}
	for c := range cols {
		src.Lon[c] = float64(c) * lonStep
	}

	hotspots := [][2]float64{{28.6, 77.2}, {39.9, 116.4}, {40.7, 286.0}, {-23.5, 313.4}}

	for _, g := range domain.AllGases {
		grid := make([][]float64, rows)
		for r := range rows {
			grid[r] = make([]float64, cols)
			for c := range cols {
				boost := 0.0
				for _, h := range hotspots {
					d2 := (src.Lat[r]-h[0])*(src.Lat[r]-h[0]) + (src.Lon[c]-h[1])*(src.Lon[c]-h[1])
					boost += 4 * math.Exp(-d2/50)
				}
				noise := 0.8 + 0.4*rng.Float64()
				grid[r][c] = baseline[g] * (1 + boost) * noise
			}
		}
		src.Gases[g] = grid
	}

	for r := range rows {
		for c := range cols {
			if rng.Float64() < missing {
				g := domain.AllGases[rng.IntN(domain.GasCount)]
				src.Gases[g][r][c] = math.NaN()
			}
		}
	}
	return src
}
