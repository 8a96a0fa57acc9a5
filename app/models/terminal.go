package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Terminal states. Pending and expired are never stored; they are derived
// from PaymentID and ExpiresAt.
const (
	TerminalStatusActive    = "active"
	TerminalStatusPending   = "pending"
	TerminalStatusApproved  = "approved"
	TerminalStatusRejected  = "rejected"
	TerminalStatusCancelled = "cancelled"
	TerminalStatusExpired   = "expired"
)

// DefaultTerminalTTL is how long a payment link stays usable.
const DefaultTerminalTTL = time.Hour

// Terminal is a single-use, time-bounded payment link for one product.
type Terminal struct {
	ID        string    `gorm:"primaryKey;type:char(36)" json:"id"`
	URLID     string    `gorm:"uniqueIndex;type:varchar(32)" json:"url_id"`
	ProductID string    `gorm:"index;type:char(36)" json:"product_id"`
	ClientID  string    `gorm:"index;type:char(36)" json:"client_id"`
	Status    string    `gorm:"type:varchar(30);default:'active'" json:"status"`
	PaymentID *string   `gorm:"type:char(36);default:null" json:"payment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

func (t *Terminal) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// Usability is the outcome of evaluating a terminal at a point in time.
type Usability struct {
	Usable bool   `json:"usable"`
	Reason string `json:"reason,omitempty"`
}

// UsabilityAt reports whether the terminal accepts a payment at now. A
// stored status of active is not enough on its own: the link must be
// unclaimed and the deadline must not have passed either.
func (t *Terminal) UsabilityAt(now time.Time) Usability {
	switch status := t.EffectiveStatus(now); status {
	case TerminalStatusActive:
		return Usability{Usable: true}
	case TerminalStatusExpired:
		return Usability{Usable: false, Reason: TerminalStatusExpired}
	default:
		return Usability{Usable: false, Reason: "not_active:" + status}
	}
}

// EffectiveStatus folds the derived states into the stored status. A
// claimed link stays pending past its deadline because the provider may
// still settle the payment that holds it.
func (t *Terminal) EffectiveStatus(now time.Time) string {
	if t.Status != TerminalStatusActive {
		return t.Status
	}
	if t.PaymentID != nil {
		return TerminalStatusPending
	}
	if now.After(t.ExpiresAt) {
		return TerminalStatusExpired
	}
	return TerminalStatusActive
}

// ClaimedBy reports whether paymentID holds the terminal.
func (t *Terminal) ClaimedBy(paymentID string) bool {
	return t.PaymentID != nil && *t.PaymentID == paymentID
}

// IsRejection reports whether status is a provider rejection outcome.
func IsRejection(status string) bool {
	return status == TerminalStatusRejected || status == TerminalStatusCancelled
}
