package netcdf

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/airlens-api/internal/domain"
)

// FillValue marks missing cells in grids written by WriteGrid.
const FillValue float32 = -9999

// WriteGrid writes src to w as a float32 NetCDF classic file shaped like a
// single-time-step CAMS download: gases are (time, latitude, longitude).
// NaN cells are stored as FillValue.
func WriteGrid(w *os.File, src domain.GridSource, vars Variables) error {
	rows, cols := len(src.Lat), len(src.Lon)
	for _, g := range domain.AllGases {
		if vars.Gases[g] == "" {
			return fmt.Errorf("no variable name for %s", g)
		}
		if _, ok := src.Gases[g]; !ok {
			return fmt.Errorf("no grid for %s", g)
		}
	}

	h := cdf.NewHeader([]string{"time", vars.Lat, vars.Lon}, []int{1, rows, cols})
	h.AddAttribute("", "Conventions", "CF-1.6")
	h.AddAttribute("", "history", "generated by airlens gengrid")

	h.AddVariable(vars.Lat, []string{vars.Lat}, []float32{0})
	h.AddAttribute(vars.Lat, "units", "degrees_north")
	h.AddVariable(vars.Lon, []string{vars.Lon}, []float32{0})
	h.AddAttribute(vars.Lon, "units", "degrees_east")
	for _, g := range domain.AllGases {
		name := vars.Gases[g]
		h.AddVariable(name, []string{"time", vars.Lat, vars.Lon}, []float32{0})
		h.AddAttribute(name, "units", "kg m**-2")
		h.AddAttribute(name, "long_name", "Total column "+g.String())
		h.AddAttribute(name, "_FillValue", []float32{FillValue})
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("create netcdf: %w", err)
	}

	if err := writeVar(f, vars.Lat, toFloat32s(src.Lat)); err != nil {
		return err
	}
	if err := writeVar(f, vars.Lon, toFloat32s(src.Lon)); err != nil {
		return err
	}
	for _, g := range domain.AllGases {
		if err := writeVar(f, vars.Gases[g], flattenGrid(src.Gases[g], rows, cols)); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeVar(f *cdf.File, name string, data []float32) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	if _, err := f.Writer(name, start, end).Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// flattenGrid lays out a possibly ragged grid row-major, padding short rows
// with FillValue.
func flattenGrid(grid [][]float64, rows, cols int) []float32 {
	out := make([]float32, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			v := FillValue
			if row < len(grid) && col < len(grid[row]) && !math.IsNaN(grid[row][col]) {
				v = float32(grid[row][col])
			}
			out[row*cols+col] = v
		}
	}
	return out
}

func toFloat32s(vals []float64) []float32 {
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out
}
