package models

import "time"

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusProcessed BookingStatus = "PROCESSED"
	StatusCancelled BookingStatus = "RESERVE_CANCELLED"
)

// Terminal states accept no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusCancelled
}

type TelemedicineConfig struct {
	Active      bool       `json:"active"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
}

type ServiceDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration,omitempty"`
}

type Booking struct {
	ID         string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	QueueID    string        `gorm:"type:varchar(64);not null;index:idx_booking_queue_date" json:"queue_id"`
	CommerceID string        `gorm:"type:varchar(64);not null;index:idx_booking_commerce_date" json:"commerce_id"`
	Date       string        `gorm:"type:varchar(10);not null;index:idx_booking_queue_date;index:idx_booking_commerce_date" json:"date"`
	Number     int           `gorm:"not null" json:"number"`
	Block      *Block        `gorm:"type:jsonb;serializer:json" json:"block,omitempty"`
	Status     BookingStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	SessionID  string        `gorm:"type:varchar(64);index" json:"session_id,omitempty"`
	ClientID   string        `gorm:"type:varchar(64)" json:"client_id"`
	Channel    string        `gorm:"type:varchar(32)" json:"channel,omitempty"`
	Type       string        `gorm:"type:varchar(32)" json:"type,omitempty"`

	ServicesID      []string        `gorm:"type:jsonb;serializer:json" json:"services_id,omitempty"`
	ServicesDetails []ServiceDetail `gorm:"type:jsonb;serializer:json" json:"services_details,omitempty"`
	ServiceDuration int             `json:"service_duration,omitempty"`

	ProfessionalID         string  `gorm:"type:varchar(64)" json:"professional_id,omitempty"`
	ProfessionalCommission float64 `json:"professional_commission,omitempty"`
	CommissionType         string  `gorm:"type:varchar(16)" json:"commission_type,omitempty"`

	PackageID string     `gorm:"type:varchar(64)" json:"package_id,omitempty"`
	Paid      bool       `json:"paid"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`

	Telemedicine *TelemedicineConfig `gorm:"type:jsonb;serializer:json" json:"telemedicine,omitempty"`

	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	AttentionID string     `gorm:"type:varchar(64)" json:"attention_id,omitempty"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy string     `json:"confirmed_by,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy string     `json:"cancelled_by,omitempty"`

	TransferedAt     *time.Time `json:"transfered_at,omitempty"`
	TransferedBy     string     `json:"transfered_by,omitempty"`
	TransferedFrom   string     `gorm:"type:varchar(64)" json:"transfered_from,omitempty"`
	TransferedOrigin string     `gorm:"type:varchar(10)" json:"transfered_origin,omitempty"`
	TransferedCount  int        `json:"transfered_count"`

	EditedAt          *time.Time `json:"edited_at,omitempty"`
	EditedBy          string     `json:"edited_by,omitempty"`
	EditedDateOrigin  string     `gorm:"type:varchar(10)" json:"edited_date_origin,omitempty"`
	EditedBlockOrigin *Block     `gorm:"type:jsonb;serializer:json" json:"edited_block_origin,omitempty"`

	ConfirmNotifiedAt *time.Time `json:"confirm_notified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
