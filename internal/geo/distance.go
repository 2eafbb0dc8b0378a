// Package geo holds great-circle helpers for delivery coordinates.
package geo

import "math"

// EarthRadiusMi is the mean Earth radius in miles.
const EarthRadiusMi = 3959.0

// DistanceMi returns the haversine distance in miles between two
// latitude/longitude pairs given in degrees.
func DistanceMi(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLon := degreesToRadians(lon2 - lon1)

	lat1 = degreesToRadians(lat1)
	lat2 = degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMi * c
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
