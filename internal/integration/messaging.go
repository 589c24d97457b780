package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/service"
)

// Routing keys for outbound commands on the bookings exchange. The owning
// services (notifications, telemedicine, waitlist, consent) consume them.
const (
	KeyNotificationEmail    = "notification.email"
	KeyNotificationWhatsapp = "notification.whatsapp"
	KeyTelemedicineCancel   = "telemedicine.cancel"
	KeyWaitlistAvailable    = "waitlist.available"
	KeyConsentRequest       = "consent.request"
)

// Publisher is satisfied by *rabbitmq.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type NotificationMessage struct {
	Kind       service.NotificationKind `json:"kind"`
	Channel    string                   `json:"channel"`
	To         string                   `json:"to"`
	BookingID  string                   `json:"booking_id"`
	CommerceID string                   `json:"commerce_id"`
	QueueID    string                   `json:"queue_id"`
	Date       string                   `json:"date"`
	Number     int                      `json:"number"`
	Block      *models.Block            `json:"block,omitempty"`
	ClientName string                   `json:"client_name,omitempty"`
	SentAt     time.Time                `json:"sent_at"`
}

type Notifications struct {
	pub Publisher
	now func() time.Time
}

func NewNotifications(pub Publisher, now func() time.Time) *Notifications {
	if now == nil {
		now = time.Now
	}
	return &Notifications{pub: pub, now: now}
}

func (n *Notifications) SendBookingEmail(ctx context.Context, msg service.BookingNotification) error {
	if msg.Client == nil || msg.Client.Email == "" {
		return fmt.Errorf("notification %s: client has no email", msg.Kind)
	}
	return n.pub.Publish(ctx, KeyNotificationEmail, n.message(msg, "email", msg.Client.Email))
}

func (n *Notifications) SendBookingWhatsapp(ctx context.Context, msg service.BookingNotification) error {
	if msg.Client == nil || msg.Client.Phone == "" {
		return fmt.Errorf("notification %s: client has no phone", msg.Kind)
	}
	return n.pub.Publish(ctx, KeyNotificationWhatsapp, n.message(msg, "whatsapp", msg.Client.Phone))
}

func (n *Notifications) message(msg service.BookingNotification, channel, to string) NotificationMessage {
	b := msg.Booking
	return NotificationMessage{
		Kind:       msg.Kind,
		Channel:    channel,
		To:         to,
		BookingID:  b.ID,
		CommerceID: b.CommerceID,
		QueueID:    b.QueueID,
		Date:       b.Date,
		Number:     b.Number,
		Block:      b.Block,
		ClientName: msg.Client.Name,
		SentAt:     n.now(),
	}
}

type Telemedicine struct {
	pub Publisher
}

func NewTelemedicine(pub Publisher) *Telemedicine {
	return &Telemedicine{pub: pub}
}

func (t *Telemedicine) CancelSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return t.pub.Publish(ctx, KeyTelemedicineCancel, map[string]string{"session_id": sessionID})
}

type Waitlist struct {
	pub Publisher
}

func NewWaitlist(pub Publisher) *Waitlist {
	return &Waitlist{pub: pub}
}

type waitlistMessage struct {
	QueueID string        `json:"queue_id"`
	Date    string        `json:"date"`
	Block   *models.Block `json:"block,omitempty"`
}

func (w *Waitlist) NotifyAvailability(ctx context.Context, queueID, date string, block *models.Block) error {
	return w.pub.Publish(ctx, KeyWaitlistAvailable, waitlistMessage{QueueID: queueID, Date: date, Block: block})
}

type Consent struct {
	pub Publisher
}

func NewConsent(pub Publisher) *Consent {
	return &Consent{pub: pub}
}

type consentMessage struct {
	BookingID  string `json:"booking_id"`
	CommerceID string `json:"commerce_id"`
	ClientID   string `json:"client_id"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (c *Consent) RequestConsent(ctx context.Context, b *models.Booking, client *models.Client) error {
	msg := consentMessage{BookingID: b.ID, CommerceID: b.CommerceID, ClientID: b.ClientID}
	if client != nil {
		msg.Email, msg.Phone = client.Email, client.Phone
	}
	return c.pub.Publish(ctx, KeyConsentRequest, msg)
}
