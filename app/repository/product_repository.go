package repository

import (
	"context"

	"github.com/francopicc/ameba/app/models"
	"gorm.io/gorm"
)

// productRepository implements the ProductRepository interface
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository instance
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&products).Error
	return products, err
}

func (r *productRepository) UpdateOwned(ctx context.Context, ownerID, id string, upd ProductUpdate) (*models.Product, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Updates(map[string]any{
			"name":        upd.Name,
			"description": upd.Description,
			"amount":      upd.Amount,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	var product models.Product
	if err := r.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) DeleteOwned(ctx context.Context, ownerID, id string) (int64, error) {
	res := r.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, id).Delete(&models.Product{})
	return res.RowsAffected, res.Error
}
