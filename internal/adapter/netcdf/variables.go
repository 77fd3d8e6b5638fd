package netcdf

import (
	"github.com/couchcryptid/airlens-api/internal/config"
	"github.com/couchcryptid/airlens-api/internal/domain"
)

// Variables maps coordinate axes and gases to NetCDF variable names.
type Variables struct {
	Lat   string
	Lon   string
	Gases map[domain.GasKind]string
}

// DefaultVariables returns the CAMS total-column variable names.
func DefaultVariables() Variables {
	return Variables{
		Lat: "latitude",
		Lon: "longitude",
		Gases: map[domain.GasKind]string{
			domain.CO:  "tcco",
			domain.NO2: "tcno2",
			domain.O3:  "gtco3",
			domain.SO2: "tcso2",
		},
	}
}

// VariablesFromConfig returns the variable names configured for the service.
func VariablesFromConfig(cfg *config.Config) Variables {
	return Variables{
		Lat: cfg.LatVariable,
		Lon: cfg.LonVariable,
		Gases: map[domain.GasKind]string{
			domain.CO:  cfg.GasVariables.CO,
			domain.NO2: cfg.GasVariables.NO2,
			domain.O3:  cfg.GasVariables.O3,
			domain.SO2: cfg.GasVariables.SO2,
		},
	}
}
