package location

import "github.com/benmeehan/geo-distance/pkg/geo"

// Fix is a position reported by a location source.
type Fix struct {
	Latitude  float64
	Longitude float64
	Altitude  float64 // meters above mean sea level, 0 when unknown
	Accuracy  float64 // meters for network fixes, HDOP for GPS fixes
}

// Coordinates converts the fix into the raw triple the distance calculator accepts.
func (f Fix) Coordinates() *geo.Coordinates {
	return &geo.Coordinates{Latitude: f.Latitude, Longitude: f.Longitude, Altitude: f.Altitude}
}
