package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxClientsPerOwner caps how many businesses one identity may register.
const MaxClientsPerOwner = 3

const apiKeyPrefixLen = 8

var clientNamePattern = regexp.MustCompile(`^[A-Za-z0-9 ]+$`)

var clientValidator = newClientValidator()

func newClientValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clientname", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return strings.TrimSpace(name) != "" && clientNamePattern.MatchString(name)
	})
	return v
}

// Client is a tenant business owned by one identity.
type Client struct {
	ID           string    `gorm:"primaryKey;type:char(36)" json:"id"`
	Name         string    `gorm:"type:varchar(50)" json:"name" validate:"required,min=3,max=50,clientname"`
	OwnerID      string    `gorm:"index;type:char(36)" json:"owner_id" validate:"required"`
	APIKeyHash   string    `gorm:"index;type:char(64);default:''" json:"-"`
	APIKeyPrefix string    `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Client) Validate() error {
	return clientValidator.Struct(c)
}

// OwnedBy reports whether identityID owns the client.
func (c *Client) OwnedBy(identityID string) bool {
	return c != nil && identityID != "" && c.OwnerID == identityID
}

// ValidateClientName applies the name rules without building a client:
// 3 to 50 characters, letters, digits and spaces only, not blank.
func ValidateClientName(name string) error {
	return clientValidator.Var(name, "required,min=3,max=50,clientname")
}

// IssueAPIKey generates a fresh key, stores its hash on the client and
// returns the raw value. The raw key is never persisted.
func (c *Client) IssueAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	raw := hex.EncodeToString(b)
	c.APIKeyHash = HashAPIKey(raw)
	c.APIKeyPrefix = raw[:apiKeyPrefixLen]
	return raw, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
