package geo

import (
	"github.com/jftuga/geodist"
	"github.com/tidwall/geodesic"
)

// GeodesicFunc returns the surface distance in kilometers between two positions.
// Implementations must be pure and safe for concurrent use.
type GeodesicFunc func(src, dst Position) (float64, error)

// Vincenty computes the WGS-84 ellipsoidal distance. Vincenty's iteration does not
// converge for some nearly antipodal pairs; those are solved with Karney's method.
func Vincenty(src, dst Position) (float64, error) {
	p := geodist.Coord{Lat: src.latitude, Lon: src.longitude}
	q := geodist.Coord{Lat: dst.latitude, Lon: dst.longitude}
	_, km, err := geodist.VincentyDistance(p, q)
	if err != nil {
		return Karney(src, dst)
	}
	return km, nil
}

// Karney computes the WGS-84 geodesic with Karney's algorithm, which converges for
// every pair of points.
func Karney(src, dst Position) (float64, error) {
	var meters float64
	geodesic.WGS84.Inverse(src.latitude, src.longitude, dst.latitude, dst.longitude, &meters, nil, nil)
	return meters / 1000, nil
}
