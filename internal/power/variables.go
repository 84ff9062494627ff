package power

import (
	"fmt"
	"strings"

	"github.com/derickschaefer/atmosight/internal/model"
)

// Variables is the catalog of supported daily parameters.
var Variables = []model.Variable{
	{Code: "T2M", Label: "Temperature", Unit: "°C"},
	{Code: "PRECTOTCORR", Label: "Rainfall", Unit: "mm/day"},
	{Code: "WS2M", Label: "Wind Speed", Unit: "m/s"},
	{Code: "RH2M", Label: "Relative Humidity", Unit: "%"},
	{Code: "ALLSKY_SFC_SW_DWN", Label: "Solar Radiation", Unit: "kWh/m²/day"},
}

// LookupVariable finds a catalog entry by code or label, case-insensitively.
func LookupVariable(name string) (model.Variable, error) {
	name = strings.TrimSpace(name)
	for _, v := range Variables {
		if strings.EqualFold(v.Code, name) || strings.EqualFold(v.Label, name) {
			return v, nil
		}
	}
	codes := make([]string, len(Variables))
	for i, v := range Variables {
		codes[i] = v.Code
	}
	return model.Variable{}, fmt.Errorf("unknown variable %q (valid: %s)", name, strings.Join(codes, ", "))
}
