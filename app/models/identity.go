package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// MetadataActiveClientID is the identity metadata key holding the selected client.
const MetadataActiveClientID = "active_client_id"

// Identity is an authenticated account. Only the metadata bag is mutated by
// the tenancy layer; everything else belongs to the identity provider.
type Identity struct {
	ID           string            `gorm:"primaryKey;type:char(36)" json:"id"`
	Email        string            `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,max=200"`
	Name         string            `gorm:"type:varchar(150)" json:"name" validate:"max=150"`
	PasswordHash string            `gorm:"type:text" json:"-"`
	Metadata     map[string]string `gorm:"serializer:json;type:text" json:"metadata"`
	LastLoginAt  *time.Time        `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

func (i *Identity) Validate() error {
	return validator.New().Struct(i)
}

// ActiveClientID returns the durable selection, or "" when none was made.
func (i *Identity) ActiveClientID() string {
	if i == nil || i.Metadata == nil {
		return ""
	}
	return i.Metadata[MetadataActiveClientID]
}

// NewIdentity builds a local identity. An empty password yields an
// identity that can only sign in through an OAuth provider.
func NewIdentity(name, email, password string) (*Identity, error) {
	i := &Identity{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(name),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Metadata: map[string]string{},
	}
	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		i.PasswordHash = hash
	}
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return i, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPassword verifies a password against the stored hash. OAuth-only
// identities never match.
func (i *Identity) CheckPassword(password string) bool {
	if i.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(i.PasswordHash), []byte(password)) == nil
}
