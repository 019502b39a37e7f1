package services

import (
	"testing"

	"carshare-server/models"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDistance(t *testing.T) {
	// Toronto city hall to Etobicoke civic centre, roughly 15km apart.
	d := CalculateDistance(43.6535, -79.3839, 43.6435, -79.5655)
	assert.InDelta(t, 14.6, d, 1.0)

	assert.InDelta(t, 0, CalculateDistance(43.65, -79.38, 43.65, -79.38), 0.001)
}

func TestListingsNearPoint(t *testing.T) {
	listings := []models.Listing{
		{VehicleName: "close", Lat: 43.6540, Lng: -79.3840},
		{VehicleName: "far", Lat: 44.5, Lng: -80.5},
	}

	nearby := ListingsNearPoint(listings, 43.6535, -79.3839, 10)
	assert.Len(t, nearby, 1)
	assert.Equal(t, "close", nearby[0].VehicleName)

	assert.Empty(t, ListingsNearPoint(listings, 10, 10, 10))
}
