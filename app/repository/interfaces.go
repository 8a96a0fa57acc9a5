package repository

import (
	"context"
	"errors"
	"time"

	"github.com/francopicc/ameba/app/models"
	"gorm.io/gorm"
)

// ErrQuotaExceeded is returned when an owner already has the maximum number of clients.
var ErrQuotaExceeded = errors.New("client quota exceeded")

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IdentityRepository is the identity provider's persistence.
type IdentityRepository interface {
	Create(ctx context.Context, identity *models.Identity) error
	GetByID(ctx context.Context, id string) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	// PatchMetadata merges patch into the identity's metadata bag.
	PatchMetadata(ctx context.Context, id string, patch map[string]string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	GetProviderAccount(ctx context.Context, provider, providerUserID string) (*models.ProviderAccount, error)
	SaveProviderAccount(ctx context.Context, account *models.ProviderAccount) error
}

// ClientRepository defines the tenant table operations.
type ClientRepository interface {
	GetByID(ctx context.Context, id string) (*models.Client, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.Client, error)
	// ListByOwner returns the owner's clients, oldest first.
	ListByOwner(ctx context.Context, ownerID string) ([]models.Client, error)
	// CreateWithQuota inserts the client unless the owner already has max
	// clients, in which case ErrQuotaExceeded is returned and nothing is written.
	CreateWithQuota(ctx context.Context, client *models.Client, max int) error
}

// ProductUpdate carries the editable product fields.
type ProductUpdate struct {
	Name        string
	Description string
	Amount      float64
}

// ProductRepository defines product operations. Mutations are scoped by owner.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Product, error)
	UpdateOwned(ctx context.Context, ownerID, id string, upd ProductUpdate) (*models.Product, error)
	DeleteOwned(ctx context.Context, ownerID, id string) (int64, error)
}

// PaymentRepository defines payment record operations.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	ListByClient(ctx context.Context, clientID string) ([]models.Payment, error)
	// TransitionStatus sets status to `to` only if it is currently `from`.
	TransitionStatus(ctx context.Context, id, from, to string) (bool, error)
}

// TerminalRepository defines payment link operations.
type TerminalRepository interface {
	Create(ctx context.Context, terminal *models.Terminal) error
	GetByID(ctx context.Context, id string) (*models.Terminal, error)
	GetByURLID(ctx context.Context, urlID string) (*models.Terminal, error)
	// Claim binds paymentID to the terminal only if it is active, unclaimed
	// and expires_at is not before now. At most one caller wins.
	Claim(ctx context.Context, id, paymentID string, now time.Time) (bool, error)
	// Release drops paymentID's claim from a terminal that is still active.
	Release(ctx context.Context, id, paymentID string) error
	// Settle moves a terminal claimed by paymentID out of active. There is
	// no deadline: the claim was taken while the link was usable.
	Settle(ctx context.Context, id, paymentID, to string) (bool, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Identity IdentityRepository
	Client   ClientRepository
	Product  ProductRepository
	Payment  PaymentRepository
	Terminal TerminalRepository
}

// NewRepositories creates GORM-backed repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Identity: NewIdentityRepository(db),
		Client:   NewClientRepository(db),
		Product:  NewProductRepository(db),
		Payment:  NewPaymentRepository(db),
		Terminal: NewTerminalRepository(db),
	}
}
