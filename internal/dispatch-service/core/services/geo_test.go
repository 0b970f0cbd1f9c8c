package services

import (
	"math"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
)

const earthRadiusKm = 6371.0

// haversineKm mirrors the distance expression the jobs query runs in SQL.
func haversineKm(a, b model.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func roundKm(km float64) float64 {
	return math.Round(km*100) / 100
}
