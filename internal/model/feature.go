package model

import "fmt"

// Feature columns produced by the importers.
const (
	FeatureAirTemp       = "airtemp"
	FeatureHumidity      = "humidity"
	FeatureWindSpeed     = "windspeed"
	FeatureWindDirection = "winddirection"
	FeatureInsolation    = "insolation"
	FeatureTAmb          = "tamb"
	FeatureWSpd          = "wspd"
	FeaturePOA           = "poa"
	FeatureDN            = "dn"
	FeatureDF            = "df"
	FeatureTCell         = "tcell"
)

// FeatureInfo holds display name and unit for a column.
type FeatureInfo struct {
	Name string
	Unit string
}

// FeatureCatalog maps every known column to its display name and unit.
var FeatureCatalog = map[string]FeatureInfo{
	PowerColumn:          {Name: "PV Power", Unit: "W"},
	FeatureTAmb:          {Name: "Ambient Temperature", Unit: "°C"},
	FeatureWSpd:          {Name: "Wind Speed", Unit: "m/s"},
	FeatureAirTemp:       {Name: "Air Temperature", Unit: "°C"},
	FeatureHumidity:      {Name: "Relative Humidity", Unit: "%"},
	FeatureWindSpeed:     {Name: "Wind Speed", Unit: "m/s"},
	FeatureWindDirection: {Name: "Wind Direction", Unit: "°"},
	FeatureInsolation:    {Name: "Insolation", Unit: "W/m²"},
	FeaturePOA:           {Name: "Plane-of-Array Irradiance", Unit: "W/m²"},
	FeatureDN:            {Name: "Direct Normal Irradiance", Unit: "W/m²"},
	FeatureDF:            {Name: "Diffuse Irradiance", Unit: "W/m²"},
	FeatureTCell:         {Name: "Cell Temperature", Unit: "°C"},
}

// Describe returns the catalog entry for a column, falling back to the raw name.
func Describe(column string) FeatureInfo {
	if info, ok := FeatureCatalog[column]; ok {
		return info
	}
	return FeatureInfo{Name: column}
}

// ResolveFilter turns a feature filter into the ordered column set used for
// fitting. An empty filter selects every column of the frame. Otherwise the
// filter is extended with the power column, duplicates are dropped and every
// name is checked against the frame.
func ResolveFilter(f *Frame, filter []string) ([]string, error) {
	if len(filter) == 0 {
		return f.Columns(), nil
	}

	seen := make(map[string]bool, len(filter)+1)
	cols := make([]string, 0, len(filter)+1)
	for _, name := range append(append([]string{}, filter...), PowerColumn) {
		if seen[name] {
			continue
		}
		seen[name] = true
		if !f.Has(name) {
			return nil, fmt.Errorf("%w: %q not in %v", ErrUnknownColumn, name, f.columns)
		}
		cols = append(cols, name)
	}
	return cols, nil
}

// Features returns the columns other than power.
func Features(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != PowerColumn {
			out = append(out, c)
		}
	}
	return out
}
