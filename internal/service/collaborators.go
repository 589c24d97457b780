package service

import (
	"context"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
)

type NotificationKind string

const (
	NotifyBookingCreated     NotificationKind = "booking-created"
	NotifyBookingCancelled   NotificationKind = "booking-cancelled"
	NotifyBookingTransferred NotificationKind = "booking-transferred"
	NotifyBookingEdited      NotificationKind = "booking-edited"
	NotifyBookingReminder    NotificationKind = "booking-confirm-reminder"
)

type BookingNotification struct {
	Kind    NotificationKind
	Booking *models.Booking
	Client  *models.Client
}

// NotificationGateway delivers client-facing messages. Callers never wait on
// delivery outcome beyond logging it.
type NotificationGateway interface {
	SendBookingEmail(ctx context.Context, n BookingNotification) error
	SendBookingWhatsapp(ctx context.Context, n BookingNotification) error
}

// EventBus publishes domain events, at-least-once and best-effort.
type EventBus interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type AttentionFactory interface {
	CreateAttention(ctx context.Context, b *models.Booking) (*models.Attention, error)
}

type PackageLedger interface {
	IsPaid(ctx context.Context, packageID string) (bool, error)
	MarkPaid(ctx context.Context, packageID string) error
	AttachBooking(ctx context.Context, packageID, bookingID string) error
	DetachBooking(ctx context.Context, packageID, bookingID string) error
}

type IncomeLedger interface {
	RecordIncome(ctx context.Context, income models.Income) error
}

type TelemedicineService interface {
	CancelSession(ctx context.Context, sessionID string) error
}

type WaitlistNotifier interface {
	NotifyAvailability(ctx context.Context, queueID, date string, block *models.Block) error
}

type ConsentRequester interface {
	RequestConsent(ctx context.Context, b *models.Booking, c *models.Client) error
}
