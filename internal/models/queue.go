package models

import "time"

type QueueType string

const (
	QueueTypeStandard      QueueType = "STANDARD"
	QueueTypeService       QueueType = "SERVICE"
	QueueTypeProfessional  QueueType = "PROFESSIONAL"
	QueueTypeSelectService QueueType = "SELECT_SERVICE"
)

type ServiceInfo struct {
	// BlockLimit is how many live bookings one time-block may hold. Zero means 1.
	BlockLimit int `json:"blockLimit"`
	BlockTime  int `json:"blockTime"`
}

// Queue is a bookable resource with a per-day booking limit. Queues are owned by
// the commerce service and synced in through the catalog consumer.
type Queue struct {
	ID          string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CommerceID  string      `gorm:"type:varchar(64);not null;index" json:"commerce_id"`
	Name        string      `gorm:"not null" json:"name"`
	Type        QueueType   `gorm:"type:varchar(32);not null;default:'STANDARD'" json:"type"`
	Limit       int         `gorm:"not null" json:"limit"`
	Active      bool        `gorm:"not null;default:true" json:"active"`
	Available   bool        `gorm:"not null;default:true" json:"available"`
	ServiceInfo ServiceInfo `gorm:"type:jsonb;serializer:json" json:"service_info"`
	Blocks      []TimeBlock `gorm:"type:jsonb;serializer:json" json:"blocks,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (q *Queue) EffectiveBlockLimit() int {
	if q.ServiceInfo.BlockLimit <= 0 {
		return 1
	}
	return q.ServiceInfo.BlockLimit
}

func (q *Queue) IsSelectService() bool {
	return q.Type == QueueTypeSelectService
}

// Bookable reports whether the queue accepts new bookings at all.
func (q *Queue) Bookable() bool {
	return q.Active && q.Available && q.Limit > 0
}

// Offers reports whether every sub-block of b is in the queue's block catalog.
// A queue without a catalog accepts any well-formed block.
func (q *Queue) Offers(b *Block) bool {
	if len(q.Blocks) == 0 || b == nil {
		return true
	}
	for _, sub := range b.Blocks {
		found := false
		for _, tb := range q.Blocks {
			if tb == sub {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
