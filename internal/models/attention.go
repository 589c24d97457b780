package models

import "time"

type AttentionStatus string

const AttentionPending AttentionStatus = "PENDING"

// Attention is the service instance a booking turns into on its day.
type Attention struct {
	ID                    string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CommerceID            string          `gorm:"type:varchar(64);not null;index" json:"commerce_id"`
	QueueID               string          `gorm:"type:varchar(64);not null;index" json:"queue_id"`
	BookingID             string          `gorm:"type:varchar(64);uniqueIndex" json:"booking_id"`
	ClientID              string          `gorm:"type:varchar(64)" json:"client_id"`
	Number                int             `gorm:"not null" json:"number"`
	Block                 *Block          `gorm:"type:jsonb;serializer:json" json:"block,omitempty"`
	ProfessionalID        string          `gorm:"type:varchar(64)" json:"professional_id,omitempty"`
	Status                AttentionStatus `gorm:"type:varchar(20);not null" json:"status"`
	TelemedicineSessionID string          `gorm:"type:varchar(64)" json:"telemedicine_session_id,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

type Package struct {
	ID               string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CommerceID       string    `gorm:"type:varchar(64);not null;index" json:"commerce_id"`
	ClientID         string    `gorm:"type:varchar(64);index" json:"client_id"`
	ProceduresAmount int       `json:"procedures_amount"`
	ProceduresLeft   int       `json:"procedures_left"`
	Paid             bool      `json:"paid"`
	BookingIDs       []string  `gorm:"type:jsonb;serializer:json" json:"booking_ids,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Income struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CommerceID     string    `gorm:"type:varchar(64);not null;index" json:"commerce_id"`
	BookingID      string    `gorm:"type:varchar(64);index" json:"booking_id"`
	PackageID      string    `gorm:"type:varchar(64)" json:"package_id,omitempty"`
	ClientID       string    `gorm:"type:varchar(64)" json:"client_id"`
	ProfessionalID string    `gorm:"type:varchar(64)" json:"professional_id,omitempty"`
	Amount         float64   `json:"amount"`
	Commission     float64   `json:"commission"`
	PaymentMethod  string    `json:"payment_method,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
