package repository

import (
	"context"
	"time"

	"github.com/francopicc/ameba/app/models"
	"gorm.io/gorm"
)

// terminalRepository implements the TerminalRepository interface
type terminalRepository struct {
	db *gorm.DB
}

// NewTerminalRepository creates a new terminal repository instance
func NewTerminalRepository(db *gorm.DB) TerminalRepository {
	return &terminalRepository{db: db}
}

func (r *terminalRepository) Create(ctx context.Context, terminal *models.Terminal) error {
	return r.db.WithContext(ctx).Create(terminal).Error
}

func (r *terminalRepository) GetByID(ctx context.Context, id string) (*models.Terminal, error) {
	var terminal models.Terminal
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&terminal).Error; err != nil {
		return nil, err
	}
	return &terminal, nil
}

func (r *terminalRepository) GetByURLID(ctx context.Context, urlID string) (*models.Terminal, error) {
	var terminal models.Terminal
	if err := r.db.WithContext(ctx).Where("url_id = ?", urlID).First(&terminal).Error; err != nil {
		return nil, err
	}
	return &terminal, nil
}

// Claim is a single conditional UPDATE; the row count tells the caller
// whether this call won the link.
func (r *terminalRepository) Claim(ctx context.Context, id, paymentID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Terminal{}).
		Where("id = ? AND status = ? AND payment_id IS NULL AND expires_at >= ?", id, models.TerminalStatusActive, now).
		Update("payment_id", paymentID)
	return res.RowsAffected == 1, res.Error
}

func (r *terminalRepository) Release(ctx context.Context, id, paymentID string) error {
	return r.db.WithContext(ctx).Model(&models.Terminal{}).
		Where("id = ? AND status = ? AND payment_id = ?", id, models.TerminalStatusActive, paymentID).
		Update("payment_id", gorm.Expr("NULL")).Error
}

func (r *terminalRepository) Settle(ctx context.Context, id, paymentID, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Terminal{}).
		Where("id = ? AND status = ? AND payment_id = ?", id, models.TerminalStatusActive, paymentID).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}
