package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusApproved = "approved"
	PaymentStatusRejected = "rejected"

	DefaultCurrency = "ARS"
)

// Payment records one checkout attempt against a client.
type Payment struct {
	ID          string    `gorm:"primaryKey;type:char(36)" json:"id"`
	ClientID    string    `gorm:"index;type:char(36)" json:"client_id"`
	ProductID   *string   `gorm:"type:char(36);default:null" json:"product_id"`
	TerminalID  *string   `gorm:"index;type:char(36);default:null" json:"terminal_id"`
	Amount      float64   `gorm:"type:decimal(12,2)" json:"amount"`
	Currency    string    `gorm:"type:varchar(10)" json:"currency"`
	Status      string    `gorm:"type:varchar(30);index" json:"status"`
	CallbackURL string    `gorm:"type:varchar(500)" json:"callback_url"`
	Email       string    `gorm:"type:varchar(200)" json:"email"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsFinal reports whether the provider has settled the payment.
func (p *Payment) IsFinal() bool {
	return p.Status == PaymentStatusApproved || p.Status == PaymentStatusRejected
}
