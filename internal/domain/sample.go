package domain

// Sample is one grid cell where every tracked gas has a finite value.
type Sample struct {
	Lat       float64
	Lon       float64
	Values    GasValues
	Composite float64
}

// Value returns the sample's value for gas g.
func (s Sample) Value(g GasKind) float64 {
	return s.Values[g]
}

// GridSource is the resolved input to ingestion: one 2-D array per gas, indexed
// [row][col] with rows aligned to Lat and columns aligned to Lon. Missing cells
// are NaN.
type GridSource struct {
	Lat   []float64
	Lon   []float64
	Gases map[GasKind][][]float64
}

// Cells returns the number of (lat, lon) pairs the grid spans.
func (g GridSource) Cells() int {
	return len(g.Lat) * len(g.Lon)
}
