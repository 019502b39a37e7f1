package services

import (
	"math"

	"carshare-server/models"
)

// CalculateDistance returns the great-circle distance between two points
// in kilometers (Haversine).
func CalculateDistance(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371 // Earth's radius in kilometers

	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// ListingsNearPoint filters listings to those whose pickup location lies
// within radiusKm of the given point.
func ListingsNearPoint(listings []models.Listing, lat, lng, radiusKm float64) []models.Listing {
	nearby := []models.Listing{}
	for _, listing := range listings {
		if CalculateDistance(listing.Lat, listing.Lng, lat, lng) <= radiusKm {
			nearby = append(nearby, listing)
		}
	}
	return nearby
}
