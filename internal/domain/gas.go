package domain

import (
	"fmt"
	"strings"
)

// GasKind identifies one of the tracked pollutant indicators.
type GasKind int

const (
	CO GasKind = iota
	NO2
	O3
	SO2
)

// GasCount is the number of tracked gases.
const GasCount = 4

// AllGases lists every GasKind in canonical order.
var AllGases = [GasCount]GasKind{CO, NO2, O3, SO2}

var gasNames = [GasCount]string{"CO", "NO2", "O3", "SO2"}

func (g GasKind) String() string {
	if g < 0 || int(g) >= GasCount {
		return fmt.Sprintf("GasKind(%d)", int(g))
	}
	return gasNames[g]
}

// Valid reports whether g is one of the tracked gases.
func (g GasKind) Valid() bool {
	return g >= 0 && int(g) < GasCount
}

// ParseGasKind converts a case-insensitive gas name ("no2", "CO") to a GasKind.
func ParseGasKind(s string) (GasKind, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range gasNames {
		if n == name {
			return GasKind(i), nil
		}
	}
	return 0, fmt.Errorf("invalid gas %q, choose from %s", s, strings.Join(gasNames[:], ", "))
}

// GasValues holds one value per GasKind, indexed by the kind itself.
// It is an array so copies never share storage.
type GasValues [GasCount]float64

// Get returns the value for gas g.
func (v GasValues) Get(g GasKind) float64 {
	return v[g]
}
