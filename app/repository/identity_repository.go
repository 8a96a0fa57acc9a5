package repository

import (
	"context"
	"strings"
	"time"

	"github.com/francopicc/ameba/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// identityRepository implements the IdentityRepository interface
type identityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository creates a new identity repository instance
func NewIdentityRepository(db *gorm.DB) IdentityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) Create(ctx context.Context, identity *models.Identity) error {
	return r.db.WithContext(ctx).Create(identity).Error
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	var identity models.Identity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&identity).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	var identity models.Identity
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&identity).Error
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// PatchMetadata reads and rewrites the bag under a row lock so concurrent
// patches of different keys do not overwrite each other.
func (r *identityRepository) PatchMetadata(ctx context.Context, id string, patch map[string]string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var identity models.Identity
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&identity).Error; err != nil {
			return err
		}
		merged := make(map[string]string, len(identity.Metadata)+len(patch))
		for k, v := range identity.Metadata {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		return tx.Model(&identity).Select("metadata").Updates(&models.Identity{Metadata: merged}).Error
	})
}

func (r *identityRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Identity{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

func (r *identityRepository) GetProviderAccount(ctx context.Context, provider, providerUserID string) (*models.ProviderAccount, error) {
	var pa models.ProviderAccount
	err := r.db.WithContext(ctx).Where("provider = ? AND provider_user_id = ?", provider, providerUserID).First(&pa).Error
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

func (r *identityRepository) SaveProviderAccount(ctx context.Context, account *models.ProviderAccount) error {
	return r.db.WithContext(ctx).Save(account).Error
}
