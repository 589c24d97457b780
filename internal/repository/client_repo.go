package repository

import (
	"context"
	"errors"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"gorm.io/gorm"
)

type ClientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Client, error)
	// FindByContact looks a client up by email or id number within a commerce.
	// It returns (nil, nil) when there is no match.
	FindByContact(ctx context.Context, commerceID, email, idNumber string) (*models.Client, error)
	Save(ctx context.Context, client *models.Client) error
}

type clientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) FindByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) FindByContact(ctx context.Context, commerceID, email, idNumber string) (*models.Client, error) {
	if email == "" && idNumber == "" {
		return nil, nil
	}
	q := r.db.WithContext(ctx).Where("commerce_id = ?", commerceID)
	switch {
	case email != "" && idNumber != "":
		q = q.Where("email = ? OR id_number = ?", email, idNumber)
	case email != "":
		q = q.Where("email = ?", email)
	default:
		q = q.Where("id_number = ?", idNumber)
	}

	var client models.Client
	err := q.Order("updated_at DESC").First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) Save(ctx context.Context, client *models.Client) error {
	return r.db.WithContext(ctx).Save(client).Error
}
