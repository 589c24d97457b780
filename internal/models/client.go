package models

import "time"

type Client struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CommerceID string    `gorm:"type:varchar(64);index" json:"commerce_id"`
	Name       string    `json:"name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Email      string    `gorm:"index" json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	IDNumber   string    `gorm:"index" json:"id_number,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MergeClient combines a stored client with an inbound payload field by field.
// Whichever side was updated more recently wins on the fields it has set; the
// other side only fills the gaps.
func MergeClient(existing *Client, inbound Client) Client {
	if existing == nil {
		return inbound
	}
	newer, older := inbound, *existing
	if existing.UpdatedAt.After(inbound.UpdatedAt) {
		newer, older = *existing, inbound
	}
	merged := Client{
		ID:         existing.ID,
		CommerceID: pick(newer.CommerceID, older.CommerceID),
		Name:       pick(newer.Name, older.Name),
		LastName:   pick(newer.LastName, older.LastName),
		Email:      pick(newer.Email, older.Email),
		Phone:      pick(newer.Phone, older.Phone),
		IDNumber:   pick(newer.IDNumber, older.IDNumber),
		CreatedAt:  existing.CreatedAt,
		UpdatedAt:  newer.UpdatedAt,
	}
	return merged
}

func pick(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}
