package repository

import (
	"context"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"gorm.io/gorm"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	Update(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	CountActive(ctx context.Context, queueID, date string) (int64, error)
	FindByQueueAndDate(ctx context.Context, queueID, date string, status *models.BookingStatus) ([]models.Booking, error)
	FindByCommerceDateStatus(ctx context.Context, commerceID, date string, status models.BookingStatus) ([]models.Booking, error)
	FindPendingBefore(ctx context.Context, commerceID, date string, createdBefore time.Time) ([]models.Booking, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *bookingRepository) Update(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Save(booking).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// CountActive counts every non-cancelled booking of the queue on the date.
func (r *bookingRepository) CountActive(ctx context.Context, queueID, date string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("queue_id = ? AND date = ? AND status <> ?", queueID, date, models.StatusCancelled).
		Count(&count).Error
	return count, err
}

func (r *bookingRepository) FindByQueueAndDate(ctx context.Context, queueID, date string, status *models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	q := r.db.WithContext(ctx).Where("queue_id = ? AND date = ?", queueID, date)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Order("number ASC, created_at ASC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *bookingRepository) FindByCommerceDateStatus(ctx context.Context, commerceID, date string, status models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("commerce_id = ? AND date = ? AND status = ?", commerceID, date, status).
		Order("queue_id ASC, number ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// FindPendingBefore returns pending bookings dated strictly before date that
// were created before createdBefore.
func (r *bookingRepository) FindPendingBefore(ctx context.Context, commerceID, date string, createdBefore time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("commerce_id = ? AND status = ? AND date < ? AND created_at < ?", commerceID, models.StatusPending, date, createdBefore).
		Order("date ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
