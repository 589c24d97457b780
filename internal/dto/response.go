package dto

import (
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/batch"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/service"
)

type BookingResponse struct {
	ID             string                     `json:"id"`
	QueueID        string                     `json:"queue_id"`
	CommerceID     string                     `json:"commerce_id"`
	ClientID       string                     `json:"client_id"`
	Date           string                     `json:"date"`
	Number         int                        `json:"number"`
	Block          *models.Block              `json:"block,omitempty"`
	Status         models.BookingStatus       `json:"status"`
	Paid           bool                       `json:"paid"`
	Processed      bool                       `json:"processed"`
	AttentionID    string                     `json:"attention_id,omitempty"`
	PackageID      string                     `json:"package_id,omitempty"`
	ProfessionalID string                     `json:"professional_id,omitempty"`
	Telemedicine   *models.TelemedicineConfig `json:"telemedicine,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

type HoldResponse struct {
	SessionID string              `json:"session_id"`
	ExpiresAt time.Time           `json:"expires_at"`
	Claims    []models.BlockUsage `json:"claims"`
}

type JobResultResponse struct {
	Job    string       `json:"job"`
	Result batch.Result `json:"result"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		QueueID:        b.QueueID,
		CommerceID:     b.CommerceID,
		ClientID:       b.ClientID,
		Date:           b.Date,
		Number:         b.Number,
		Block:          b.Block,
		Status:         b.Status,
		Paid:           b.Paid,
		Processed:      b.Processed,
		AttentionID:    b.AttentionID,
		PackageID:      b.PackageID,
		ProfessionalID: b.ProfessionalID,
		Telemedicine:   b.Telemedicine,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func ToBookingResponses(bookings []models.Booking) []BookingResponse {
	resp := make([]BookingResponse, len(bookings))
	for i := range bookings {
		resp[i] = ToBookingResponse(&bookings[i])
	}
	return resp
}

func ToHoldResponse(h *service.Hold) HoldResponse {
	claims := h.Claims
	if claims == nil {
		claims = []models.BlockUsage{}
	}
	return HoldResponse{SessionID: h.SessionID, ExpiresAt: h.ExpiresAt, Claims: claims}
}
