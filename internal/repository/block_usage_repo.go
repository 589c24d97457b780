package repository

import (
	"context"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlockUsageLedger records which (queue, date, hour) claims are live. Holds are
// written ahead of a booking and bound to it once the booking exists; cancel,
// transfer and edit keep the ledger in step with the booking.
type BlockUsageLedger interface {
	GetTakenBlocksByDate(ctx context.Context, queueID, date string) ([]models.BlockUsage, error)
	ClaimBlocks(ctx context.Context, usages []models.BlockUsage) error
	// BindSession attaches the session's unbound holds to the booking and
	// returns the claims now owned by it.
	BindSession(ctx context.Context, queueID, date, sessionID, bookingID string) ([]models.BlockUsage, error)
	DeleteTakenBlocksByDate(ctx context.Context, queueID, date, bookingID string) error
	// DeleteSessionHolds drops the session's unbound holds only.
	DeleteSessionHolds(ctx context.Context, queueID, date, sessionID string) error
	EditHourAndDateTakenBlocksByDate(ctx context.Context, queueID, date, bookingID, newDate string, newBlock *models.Block) error
	EditQueueTakenBlocksByDate(ctx context.Context, queueID, date, bookingID, newQueueID string) error
}

type blockUsageRepository struct {
	db *gorm.DB
}

func NewBlockUsageRepository(db *gorm.DB) BlockUsageLedger {
	return &blockUsageRepository{db: db}
}

func (r *blockUsageRepository) GetTakenBlocksByDate(ctx context.Context, queueID, date string) ([]models.BlockUsage, error) {
	var usages []models.BlockUsage
	err := r.db.WithContext(ctx).
		Where("queue_id = ? AND date = ?", queueID, date).
		Order("created_at ASC").
		Find(&usages).Error
	if err != nil {
		return nil, err
	}
	return usages, nil
}

func (r *blockUsageRepository) ClaimBlocks(ctx context.Context, usages []models.BlockUsage) error {
	if len(usages) == 0 {
		return nil
	}
	for i := range usages {
		if usages[i].ID == "" {
			usages[i].ID = uuid.NewString()
		}
	}
	return r.db.WithContext(ctx).Create(&usages).Error
}

func (r *blockUsageRepository) BindSession(ctx context.Context, queueID, date, sessionID, bookingID string) ([]models.BlockUsage, error) {
	var bound []models.BlockUsage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.BlockUsage{}).
			Where("queue_id = ? AND date = ? AND session_id = ? AND booking_id = ''", queueID, date, sessionID).
			Updates(map[string]any{"booking_id": bookingID, "expires_at": nil}).Error
		if err != nil {
			return err
		}
		return tx.Where("queue_id = ? AND date = ? AND booking_id = ?", queueID, date, bookingID).Find(&bound).Error
	})
	if err != nil {
		return nil, err
	}
	return bound, nil
}

func (r *blockUsageRepository) DeleteTakenBlocksByDate(ctx context.Context, queueID, date, bookingID string) error {
	return r.db.WithContext(ctx).
		Where("queue_id = ? AND date = ? AND booking_id = ?", queueID, date, bookingID).
		Delete(&models.BlockUsage{}).Error
}

func (r *blockUsageRepository) DeleteSessionHolds(ctx context.Context, queueID, date, sessionID string) error {
	return r.db.WithContext(ctx).
		Where("queue_id = ? AND date = ? AND session_id = ? AND booking_id = ''", queueID, date, sessionID).
		Delete(&models.BlockUsage{}).Error
}

// EditHourAndDateTakenBlocksByDate replaces the booking's claims with claims for
// newBlock on newDate. A super block may change the number of rows, so this is
// a delete and insert rather than an update.
func (r *blockUsageRepository) EditHourAndDateTakenBlocksByDate(ctx context.Context, queueID, date, bookingID, newDate string, newBlock *models.Block) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []models.BlockUsage
		if err := tx.Where("queue_id = ? AND date = ? AND booking_id = ?", queueID, date, bookingID).Find(&current).Error; err != nil {
			return err
		}
		sessionID := ""
		if len(current) > 0 {
			sessionID = current[0].SessionID
		}
		if err := tx.Where("queue_id = ? AND date = ? AND booking_id = ?", queueID, date, bookingID).
			Delete(&models.BlockUsage{}).Error; err != nil {
			return err
		}
		usages := models.UsagesFor(queueID, newDate, newBlock, sessionID, bookingID)
		if len(usages) == 0 {
			return nil
		}
		for i := range usages {
			usages[i].ID = uuid.NewString()
		}
		return tx.Create(&usages).Error
	})
}

func (r *blockUsageRepository) EditQueueTakenBlocksByDate(ctx context.Context, queueID, date, bookingID, newQueueID string) error {
	return r.db.WithContext(ctx).
		Model(&models.BlockUsage{}).
		Where("queue_id = ? AND date = ? AND booking_id = ?", queueID, date, bookingID).
		Update("queue_id", newQueueID).Error
}
