package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	BookingStatusPending   = "Pending"
	BookingStatusConfirmed = "Confirmed"
	BookingStatusCancelled = "Cancelled"

	// CancellationSentinel marks the confirmation-code slot of a
	// cancelled booking.
	CancellationSentinel = "Booking Cancelled"

	// BookingTerm is the fixed rental window; end date is always
	// start + BookingTerm, never caller supplied.
	BookingTerm = 7 * 24 * time.Hour
)

// Booking reserves a Listing for a fixed 7-day window. Listing fields
// are denormalized at booking time so the record stays meaningful even
// if the listing later disappears from search.
type Booking struct {
	gorm.Model
	ListingID uint      `json:"listingID" gorm:"index"`
	OwnerID   uint      `json:"ownerID" gorm:"index"`
	RenterID  uint      `json:"renterID" gorm:"index"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Status    string    `json:"status" gorm:"type:varchar(20);index"` // Pending, Confirmed, Cancelled

	// Absent until the owner confirms; CancellationSentinel once cancelled.
	ConfirmationCode string `json:"confirmationCode"`

	// Listing snapshot captured at creation time.
	VehicleName  string         `json:"vehicleName"`
	LicensePlate string         `json:"licensePlate" gorm:"index"`
	RentalPrice  float64        `json:"rentalPrice"`
	MinSeat      int            `json:"minSeat"`
	MaxSeat      int            `json:"maxSeat"`
	ModelYear    int            `json:"modelYear"`
	Images       datatypes.JSON `json:"images"`

	Listing *Listing `json:"listing,omitempty" gorm:"foreignKey:ListingID"`
	Renter  *User    `json:"renter,omitempty" gorm:"foreignKey:RenterID"`
}

// Active reports whether the booking still blocks its vehicle's dates.
func (b *Booking) Active() bool {
	return b.Status != BookingStatusCancelled
}
