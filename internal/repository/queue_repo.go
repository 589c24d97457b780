package repository

import (
	"context"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QueueRepository interface {
	FindByID(ctx context.Context, id string) (*models.Queue, error)
	Upsert(ctx context.Context, queue *models.Queue) error
}

type queueRepository struct {
	db *gorm.DB
}

func NewQueueRepository(db *gorm.DB) QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) FindByID(ctx context.Context, id string) (*models.Queue, error) {
	var queue models.Queue
	if err := r.db.WithContext(ctx).First(&queue, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &queue, nil
}

// Upsert inserts the queue or overwrites its catalog fields (same ID from the commerce service).
func (r *queueRepository) Upsert(ctx context.Context, queue *models.Queue) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"commerce_id", "name", "type", "limit", "active", "available", "service_info", "blocks", "updated_at"}),
	}).Create(queue).Error
}

type CommerceRepository interface {
	FindByID(ctx context.Context, id string) (*models.Commerce, error)
	FindActive(ctx context.Context) ([]models.Commerce, error)
	Upsert(ctx context.Context, commerce *models.Commerce) error
}

type commerceRepository struct {
	db *gorm.DB
}

func NewCommerceRepository(db *gorm.DB) CommerceRepository {
	return &commerceRepository{db: db}
}

func (r *commerceRepository) FindByID(ctx context.Context, id string) (*models.Commerce, error) {
	var commerce models.Commerce
	if err := r.db.WithContext(ctx).First(&commerce, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &commerce, nil
}

func (r *commerceRepository) FindActive(ctx context.Context) ([]models.Commerce, error) {
	var commerces []models.Commerce
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id ASC").Find(&commerces).Error; err != nil {
		return nil, err
	}
	return commerces, nil
}

func (r *commerceRepository) Upsert(ctx context.Context, commerce *models.Commerce) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "timezone", "active", "features", "updated_at"}),
	}).Create(commerce).Error
}
