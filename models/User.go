package models

import (
	"gorm.io/gorm"
)

// Roles are fixed at signup and re-asserted at every sign-in.
const (
	RoleRenter = "Renter"
	RoleOwner  = "Owner"
)

type User struct {
	gorm.Model
	Name            string `json:"name"`
	Email           string `json:"email" gorm:"uniqueIndex"`
	Password        string `json:"-"`
	Role            string `json:"role" gorm:"type:varchar(20);index"` // Renter, Owner
	SocialLogin     bool   `json:"socialLogin"`
	SocialProvider  string `json:"socialProvider"`
	ProfileImageURL string `json:"profileImageURL"`

	Listings []Listing `json:"listings,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
}
