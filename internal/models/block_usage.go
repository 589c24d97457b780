package models

import "time"

// BlockUsage is one ledger claim on (queue, date, hour). It starts as a session
// hold and is bound to a booking once the booking is created.
type BlockUsage struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	QueueID     string     `gorm:"type:varchar(64);not null;index:idx_block_usage_queue_date" json:"queue_id"`
	Date        string     `gorm:"type:varchar(10);not null;index:idx_block_usage_queue_date" json:"date"`
	HourFrom    string     `gorm:"type:varchar(5);not null" json:"hour_from"`
	HourTo      string     `gorm:"type:varchar(5);not null" json:"hour_to"`
	BlockNumber int        `gorm:"not null" json:"block_number"`
	SessionID   string     `gorm:"type:varchar(64);index" json:"session_id"`
	BookingID   string     `gorm:"type:varchar(64);index" json:"booking_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (BlockUsage) TableName() string {
	return "booking_block_numbers_used"
}

// Live reports whether the claim still occupies its hour at now. Claims bound to
// a booking never expire; unbound holds lapse at ExpiresAt.
func (u BlockUsage) Live(now time.Time) bool {
	if u.BookingID != "" || u.ExpiresAt == nil {
		return true
	}
	return now.Before(*u.ExpiresAt)
}

// OwnedBy reports whether the claim belongs to the given session or booking.
func (u BlockUsage) OwnedBy(sessionID, bookingID string) bool {
	if sessionID != "" && u.SessionID == sessionID {
		return true
	}
	return bookingID != "" && u.BookingID == bookingID
}

// UsagesFor expands a block into one claim per sub-block.
func UsagesFor(queueID, date string, block *Block, sessionID, bookingID string) []BlockUsage {
	if block == nil {
		return nil
	}
	usages := make([]BlockUsage, 0, len(block.Blocks))
	for _, tb := range block.Blocks {
		usages = append(usages, BlockUsage{
			QueueID:     queueID,
			Date:        date,
			HourFrom:    tb.HourFrom,
			HourTo:      tb.HourTo,
			BlockNumber: tb.Number,
			SessionID:   sessionID,
			BookingID:   bookingID,
		})
	}
	return usages
}
