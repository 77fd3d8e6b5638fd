// Command inspect checks a NetCDF grid the way the API would load it: it lists
// the file's variables, runs ingestion and scoring, and reports how many cells
// survive along with the per-gas maxima.
//
// Variable names come from the same *_VARIABLE environment settings the API
// reads, and -file defaults to DATA_FILE.
//
// Usage:
//
//	go run ./cmd/inspect -file data/data_sfc.nc -top 5
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/airlens-api/internal/adapter/netcdf"
	"github.com/couchcryptid/airlens-api/internal/config"
	"github.com/couchcryptid/airlens-api/internal/domain"
)

func main() {
	file := flag.String("file", "", "path to the NetCDF grid (defaults to DATA_FILE)")
	top := flag.Int("top", 5, "number of most polluted cells to print")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
	if *file == "" {
		*file = cfg.DataFile
	}

	if err := run(os.Stdout, *file, netcdf.VariablesFromConfig(cfg), *top); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, path string, vars netcdf.Variables, top int) error {
	infos, err := netcdf.Inspect(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "=== Variables (%s) ===\n", path)
	for _, v := range infos {
		fmt.Fprintf(w, "  %-12s %-28s %-12s %s\n",
			v.Name, dimString(v.Dimensions, v.Lengths), v.Units, v.LongName)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src, err := netcdf.NewReader(path, vars, logger).ReadGrid(context.Background())
	if err != nil {
		return err
	}
	ds, err := domain.BuildDataset(src)
	if err != nil {
		return err
	}

	st := ds.IngestStats()
	fmt.Fprintf(w, "\n=== Ingestion ===\n")
	fmt.Fprintf(w, "  cells:   %d\n", st.Cells)
	fmt.Fprintf(w, "  kept:    %d\n", st.Kept)
	fmt.Fprintf(w, "  dropped: %d (%.2f%%)\n", st.Dropped, 100*float64(st.Dropped)/float64(max(st.Cells, 1)))

	fmt.Fprintf(w, "\n=== Maxima ===\n")
	for _, g := range domain.AllGases {
		fmt.Fprintf(w, "  %-4s %g\n", g, ds.Maxima().Get(g))
	}

	fmt.Fprintf(w, "\n=== Top %d by composite ===\n", top)
	for i, s := range ds.Top(top) {
		fmt.Fprintf(w, "  %2d. lat=%7.2f lon=%7.2f composite=%.4f\n", i+1, s.Lat, s.Lon, s.Composite)
	}
	return nil
}

func dimString(names []string, lengths []int) string {
	parts := make([]string, len(names))
	for i, n := range names {
		if i < len(lengths) {
			parts[i] = fmt.Sprintf("%s=%d", n, lengths[i])
		} else {
			parts[i] = n
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
