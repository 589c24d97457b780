package models

import "time"

const (
	EventBookingCreated                = "booking.created"
	EventBookingUpdated                = "booking.updated"
	EventProfessionalAssignedToBooking = "booking.professional_assigned"
)

// DomainEvent is the envelope published on the bookings exchange. The routing
// key equals Type.
type DomainEvent struct {
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id"`
	QueueID    string    `json:"queue_id"`
	CommerceID string    `json:"commerce_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

func NewBookingEvent(eventType string, b *Booking, data any, at time.Time) DomainEvent {
	return DomainEvent{
		Type:       eventType,
		BookingID:  b.ID,
		QueueID:    b.QueueID,
		CommerceID: b.CommerceID,
		OccurredAt: at,
		Data:       data,
	}
}
