// Package geo provides the region containment filter for device
// locations. Regions are disks around city centers, matching how the
// deployment assigns devices to regions; the filter is a data-shaping
// concern kept out of the analytic components.
package geo

import "smartcity/internal/models"

// Region is a named disk around a city center
type Region struct {
	Name      string
	Latitude  float64
	Longitude float64
	Radius    float64 // degrees
}

// Regions is the deployed region set
var Regions = []Region{
	{"São Paulo", -23.5505, -46.6333, 0.5},
	{"Rio de Janeiro", -22.9068, -43.1729, 0.4},
	{"Belo Horizonte", -19.9167, -43.9345, 0.3},
	{"Vitória", -20.2976, -40.2958, 0.2},
	{"Curitiba", -25.4284, -49.2733, 0.3},
	{"Porto Alegre", -30.0346, -51.2177, 0.3},
	{"Florianópolis", -27.5969, -48.5495, 0.2},
	{"Salvador", -12.9714, -38.5014, 0.4},
	{"Recife", -8.0476, -34.8770, 0.3},
	{"Fortaleza", -3.7319, -38.5267, 0.3},
	{"Natal", -5.7945, -35.2010, 0.2},
	{"Manaus", -3.1190, -60.0217, 0.4},
	{"Belém", -1.4557, -48.4902, 0.3},
	{"Porto Velho", -8.7612, -63.9004, 0.2},
	{"Brasília", -15.7975, -47.8919, 0.4},
	{"Goiânia", -16.6869, -49.2648, 0.3},
	{"Cuiabá", -15.6014, -56.0979, 0.2},
}

// Contains reports whether the point falls inside the region's box.
// Devices are assigned coordinates within the radius on both axes, so
// the box test matches the assignment exactly.
func (r Region) Contains(lat, lon float64) bool {
	dlat := lat - r.Latitude
	dlon := lon - r.Longitude
	if dlat < 0 {
		dlat = -dlat
	}
	if dlon < 0 {
		dlon = -dlon
	}
	return dlat <= r.Radius && dlon <= r.Radius
}

// Locate returns the name of the first region containing the point,
// or empty when no region matches
func Locate(lat, lon float64) string {
	for _, r := range Regions {
		if r.Contains(lat, lon) {
			return r.Name
		}
	}
	return ""
}

// FilterDevices keeps devices whose coordinates fall inside the named
// region. Unknown region names yield an empty result.
func FilterDevices(devices []models.Device, regionName string) []models.Device {
	var region *Region
	for i := range Regions {
		if Regions[i].Name == regionName {
			region = &Regions[i]
			break
		}
	}
	if region == nil {
		return nil
	}
	var out []models.Device
	for _, d := range devices {
		if region.Contains(d.Coords.Latitude, d.Coords.Longitude) {
			out = append(out, d)
		}
	}
	return out
}
