package repository

import (
	"context"
	"errors"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"gorm.io/gorm"
)

type AttentionRepository interface {
	Create(ctx context.Context, attention *models.Attention) error
	FindByBookingID(ctx context.Context, bookingID string) (*models.Attention, error)
}

type attentionRepository struct {
	db *gorm.DB
}

func NewAttentionRepository(db *gorm.DB) AttentionRepository {
	return &attentionRepository{db: db}
}

func (r *attentionRepository) Create(ctx context.Context, attention *models.Attention) error {
	return r.db.WithContext(ctx).Create(attention).Error
}

// FindByBookingID returns (nil, nil) when the booking has no attention yet.
func (r *attentionRepository) FindByBookingID(ctx context.Context, bookingID string) (*models.Attention, error) {
	var attention models.Attention
	err := r.db.WithContext(ctx).First(&attention, "booking_id = ?", bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attention, nil
}

type PackageRepository interface {
	FindByID(ctx context.Context, id string) (*models.Package, error)
	Update(ctx context.Context, pkg *models.Package) error
}

type packageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepository{db: db}
}

func (r *packageRepository) FindByID(ctx context.Context, id string) (*models.Package, error) {
	var pkg models.Package
	if err := r.db.WithContext(ctx).First(&pkg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *packageRepository) Update(ctx context.Context, pkg *models.Package) error {
	return r.db.WithContext(ctx).Save(pkg).Error
}

type IncomeRepository interface {
	Create(ctx context.Context, income *models.Income) error
	ExistsForBooking(ctx context.Context, bookingID string) (bool, error)
}

type incomeRepository struct {
	db *gorm.DB
}

func NewIncomeRepository(db *gorm.DB) IncomeRepository {
	return &incomeRepository{db: db}
}

func (r *incomeRepository) Create(ctx context.Context, income *models.Income) error {
	return r.db.WithContext(ctx).Create(income).Error
}

func (r *incomeRepository) ExistsForBooking(ctx context.Context, bookingID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Income{}).Where("booking_id = ?", bookingID).Count(&count).Error
	return count > 0, err
}
