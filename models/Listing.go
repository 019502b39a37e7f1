package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Listing is a vehicle an Owner has made available for rental.
// Listings are immutable once created; there is no edit or delete flow.
type Listing struct {
	gorm.Model
	OwnerID         uint           `json:"ownerID" gorm:"index"`
	VehicleName     string         `json:"vehicleName"`
	MinSeat         int            `json:"minSeat"`
	MaxSeat         int            `json:"maxSeat"`
	ModelYear       int            `json:"modelYear"`
	BatteryCapacity string         `json:"batteryCapacity"`
	LicensePlate    string         `json:"licensePlate" gorm:"uniqueIndex"`
	PickupAddress   string         `json:"pickupAddress"`
	RentalPrice     float64        `json:"rentalPrice"` // weekly rate
	Lat             float64        `json:"lat"`
	Lng             float64        `json:"lng"`
	City            string         `json:"city" gorm:"index"`
	Images          datatypes.JSON `json:"images"`

	Owner *User `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
}

// ImageURLs decodes the stored image array; a listing with no
// images yields an empty slice, never nil.
func (l *Listing) ImageURLs() []string {
	urls := []string{}
	if l.Images != nil {
		json.Unmarshal(l.Images, &urls)
	}
	return urls
}
