package models

import "time"

const (
	FeatureBookingConfirm         = "booking-confirm"
	FeatureBookingConfirmReminder = "booking-confirm-reminder"
	FeatureBookingAutoCancel      = "booking-auto-cancel"
)

type Feature struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type Commerce struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Timezone  string    `gorm:"type:varchar(64)" json:"timezone"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	Features  []Feature `gorm:"type:jsonb;serializer:json" json:"features,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Commerce) HasFeature(name string) bool {
	for _, f := range c.Features {
		if f.Name == name && f.Active {
			return true
		}
	}
	return false
}

// Location resolves the commerce timezone, falling back to fallback when the
// commerce has none or it cannot be loaded.
func (c *Commerce) Location(fallback *time.Location) *time.Location {
	if c.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
