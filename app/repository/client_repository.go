package repository

import (
	"context"

	"github.com/francopicc/ameba/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// clientRepository implements the ClientRepository interface
type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository creates a new client repository instance
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).Where("api_key_hash = ?", hash).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Client, error) {
	var clients []models.Client
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at ASC, id ASC").Find(&clients).Error
	return clients, err
}

// CreateWithQuota locks the owner's identity row so two concurrent creations
// cannot both pass the count check.
func (r *clientRepository) CreateWithQuota(ctx context.Context, client *models.Client, max int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.Identity
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", client.OwnerID).First(&owner).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Client{}).Where("owner_id = ?", client.OwnerID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(max) {
			return ErrQuotaExceeded
		}

		return tx.Create(client).Error
	})
}
