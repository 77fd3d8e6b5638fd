package netcdf

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
)

// VariableInfo summarizes one variable in a NetCDF file.
type VariableInfo struct {
	Name       string
	Dimensions []string
	Lengths    []int
	Units      string
	LongName   string
}

// Inspect lists the variables of the NetCDF file at path in header order.
func Inspect(path string) ([]VariableInfo, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid file: %w", err)
	}
	defer fh.Close()

	nc, err := cdf.Open(fh)
	if err != nil {
		return nil, fmt.Errorf("parse netcdf %s: %w", path, err)
	}

	vars := nc.Header.Variables()
	infos := make([]VariableInfo, 0, len(vars))
	for _, v := range vars {
		infos = append(infos, VariableInfo{
			Name:       v,
			Dimensions: nc.Header.Dimensions(v),
			Lengths:    nc.Header.Lengths(v),
			Units:      stringAttr(nc.Header, v, "units"),
			LongName:   stringAttr(nc.Header, v, "long_name"),
		})
	}
	return infos, nil
}

func stringAttr(h *cdf.Header, name, attr string) string {
	s, _ := h.GetAttribute(name, attr).(string)
	return s
}
