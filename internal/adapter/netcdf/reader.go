package netcdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/airlens-api/internal/domain"
)

// ErrMissingVariable is returned when a configured variable is not in the file.
var ErrMissingVariable = errors.New("variable not found")

// Reader loads a GridSource from a NetCDF classic file. NetCDF-4 (HDF5)
// downloads must be converted first, e.g. `nccopy -k classic in.nc out.nc`.
type Reader struct {
	path   string
	vars   Variables
	logger *slog.Logger
}

// NewReader creates a reader for the file at path.
func NewReader(path string, vars Variables, logger *slog.Logger) *Reader {
	return &Reader{path: path, vars: vars, logger: logger}
}

// ReadGrid opens the file and reads the coordinate vectors and the first time
// step of every gas. Fill values become NaN and packed values are unpacked.
func (r *Reader) ReadGrid(ctx context.Context) (domain.GridSource, error) {
	fh, err := os.Open(r.path)
	if err != nil {
		return domain.GridSource{}, fmt.Errorf("open grid file: %w", err)
	}
	defer fh.Close()

	nc, err := cdf.Open(fh)
	if err != nil {
		return domain.GridSource{}, fmt.Errorf("parse netcdf %s: %w", r.path, err)
	}
	return r.readGrid(ctx, nc)
}

func (r *Reader) readGrid(ctx context.Context, nc *cdf.File) (domain.GridSource, error) {
	present := make(map[string]bool)
	for _, v := range nc.Header.Variables() {
		present[v] = true
	}
	required := []string{r.vars.Lat, r.vars.Lon}
	for _, g := range domain.AllGases {
		required = append(required, r.vars.Gases[g])
	}
	for _, name := range required {
		if name == "" || !present[name] {
			return domain.GridSource{}, fmt.Errorf("%w: %q", ErrMissingVariable, name)
		}
	}

	lat, err := readVector(nc, r.vars.Lat)
	if err != nil {
		return domain.GridSource{}, err
	}
	lon, err := readVector(nc, r.vars.Lon)
	if err != nil {
		return domain.GridSource{}, err
	}

	src := domain.GridSource{
		Lat:   lat,
		Lon:   lon,
		Gases: make(map[domain.GasKind][][]float64, domain.GasCount),
	}
	for _, g := range domain.AllGases {
		if err := ctx.Err(); err != nil {
			return domain.GridSource{}, err
		}
		name := r.vars.Gases[g]
		grid, missing, err := readGrid2D(nc, name, len(lat), len(lon))
		if err != nil {
			return domain.GridSource{}, fmt.Errorf("read %s (%s): %w", name, g, err)
		}
		r.logger.Debug("gas grid loaded",
			"gas", g.String(),
			"variable", name,
			"rows", len(lat),
			"cols", len(lon),
			"missing", missing,
		)
		src.Gases[g] = grid
	}
	return src, nil
}

func readVector(nc *cdf.File, name string) ([]float64, error) {
	lengths := nc.Header.Lengths(name)
	if len(lengths) != 1 {
		return nil, fmt.Errorf("%s: want 1 dimension, got %d", name, len(lengths))
	}
	values, err := readValues(nc, name, nil, nil, lengths[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	unpack(values, packingOf(nc.Header, name))
	return values, nil
}

// readGrid2D reads the trailing (lat, lon) plane of a variable, taking index 0
// of every leading dimension such as time or level.
func readGrid2D(nc *cdf.File, name string, rows, cols int) ([][]float64, int, error) {
	lengths := nc.Header.Lengths(name)
	if len(lengths) < 2 {
		return nil, 0, fmt.Errorf("want at least 2 dimensions, got %d", len(lengths))
	}
	nd := len(lengths)
	if lengths[nd-2] != rows || lengths[nd-1] != cols {
		return nil, 0, fmt.Errorf("shape %v does not end in (%d, %d)", lengths, rows, cols)
	}

	begin := make([]int, nd)
	end := make([]int, nd)
	copy(end, lengths)
	for i := 0; i < nd-2; i++ {
		if lengths[i] == 0 {
			return nil, 0, fmt.Errorf("dimension %d is empty", i)
		}
		end[i] = 1
	}

	flat, err := readValues(nc, name, begin, end, rows*cols)
	if err != nil {
		return nil, 0, err
	}
	missing := unpack(flat, packingOf(nc.Header, name))

	grid := make([][]float64, rows)
	for row := range grid {
		grid[row] = flat[row*cols : (row+1)*cols : (row+1)*cols]
	}
	return grid, missing, nil
}

func readValues(nc *cdf.File, name string, begin, end []int, n int) ([]float64, error) {
	r := nc.Reader(name, begin, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return toFloat64s(buf)
}

// packing describes the CF packing and missing-value attributes of a variable.
type packing struct {
	scale, offset       float64
	fill, missing       float64
	hasFill, hasMissing bool
}

func packingOf(h *cdf.Header, name string) packing {
	p := packing{scale: 1}
	if v, ok := attrFloat(h, name, "scale_factor"); ok {
		p.scale = v
	}
	if v, ok := attrFloat(h, name, "add_offset"); ok {
		p.offset = v
	}
	p.fill, p.hasFill = attrFloat(h, name, "_FillValue")
	p.missing, p.hasMissing = attrFloat(h, name, "missing_value")
	return p
}

// unpack replaces fill and missing values with NaN and applies scale and
// offset in place. It returns the number of missing values.
func unpack(values []float64, p packing) int {
	missing := 0
	for i, v := range values {
		if (p.hasFill && v == p.fill) || (p.hasMissing && v == p.missing) || math.IsNaN(v) {
			values[i] = math.NaN()
			missing++
			continue
		}
		values[i] = v*p.scale + p.offset
	}
	return missing
}

func attrFloat(h *cdf.Header, name, attr string) (float64, bool) {
	vals, err := toFloat64s(h.GetAttribute(name, attr))
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func toFloat64s(v any) ([]float64, error) {
	switch vals := v.(type) {
	case []float64:
		return vals, nil
	case []float32:
		return convert(vals), nil
	case []int32:
		return convert(vals), nil
	case []int16:
		return convert(vals), nil
	case []int8:
		return convert(vals), nil
	case []uint8:
		return convert(vals), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func convert[T float32 | int32 | int16 | int8 | uint8](vals []T) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	return out
}
