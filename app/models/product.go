package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProductStatusActive   = "active"
	ProductStatusArchived = "archived"
)

// Product is owned by exactly one client through OwnerID.
type Product struct {
	ID          string    `gorm:"primaryKey;type:char(36)" json:"id"`
	OwnerID     string    `gorm:"index;type:char(36)" json:"owner_id" validate:"required"`
	Name        string    `gorm:"type:varchar(150)" json:"name" validate:"required,max=150"`
	Description string    `gorm:"type:text" json:"description" validate:"required"`
	Category    string    `gorm:"type:varchar(100)" json:"category"`
	Price       float64   `gorm:"type:decimal(12,2)" json:"price" validate:"gte=0"`
	Amount      float64   `gorm:"type:decimal(12,2)" json:"amount" validate:"gte=0"`
	Status      string    `gorm:"type:varchar(30);default:'active'" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProductPublic is what an anonymous payer may see of a product.
type ProductPublic struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

func (p *Product) Public() ProductPublic {
	return ProductPublic{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Amount:      p.Amount,
	}
}
