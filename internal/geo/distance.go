// Package geo provides location utilities for the marketplace: great-circle
// distance between a lead and an agent, the radius-to-zoom mapping used by
// map views, and a forward-geocode lookup for intake forms.
package geo

import "math"

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometers between two
// coordinates, using the haversine formula.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// ZoomForRadiusKm maps a search radius to a map zoom level. Larger radii get
// wider (lower) zoom levels.
func ZoomForRadiusKm(radiusKm float64) int {
	switch {
	case radiusKm <= 1:
		return 15
	case radiusKm <= 3:
		return 14
	case radiusKm <= 6:
		return 13
	case radiusKm <= 12:
		return 12
	case radiusKm <= 25:
		return 11
	case radiusKm <= 50:
		return 10
	case radiusKm <= 100:
		return 9
	default:
		return 8
	}
}
