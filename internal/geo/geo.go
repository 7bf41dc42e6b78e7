// README: Pure geographic computations (great-circle distance, detour cost).
package geo

import (
	"math"

	"waycart/internal/types"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometres between two
// points, using the haversine formula. Inputs are decimal degrees; callers
// validate ranges before calling.
func DistanceKm(a, b types.Coordinate) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// Midpoint returns the arithmetic midpoint of two coordinates. Good enough
// for the short trips the detour search works with; it is only used to centre
// a generous pre-filter circle, never for exact distances.
func Midpoint(a, b types.Coordinate) types.Coordinate {
	return types.Coordinate{
		Lat: (a.Lat + b.Lat) / 2,
		Lng: (a.Lng + b.Lng) / 2,
	}
}

// DetourCostKm estimates the extra travel incurred by visiting `via` on the
// way from `start` to `end`: d(start,via) + d(via,end) - d(start,end).
// By the triangle inequality the result is never negative (modulo floating
// point, which is clamped to zero).
func DetourCostKm(start, end, via types.Coordinate) float64 {
	cost := DistanceKm(start, via) + DistanceKm(via, end) - DistanceKm(start, end)
	if cost < 0 {
		return 0
	}
	return cost
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
