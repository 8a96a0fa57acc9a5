package tenancy

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/logger"
)

// IdentityStore is the slice of the identity provider the binder needs.
type IdentityStore interface {
	Lookup(ctx context.Context, id string) (*models.Identity, error)
	UpdateMetadata(ctx context.Context, id string, patch map[string]string) error
}

// Binder associates an identity with the client it is acting for. The
// identity's metadata is the source of truth; the cookie is a UI hint.
type Binder struct {
	clients    repository.ClientRepository
	identities IdentityStore
	signer     *CookieSigner
}

func NewBinder(clients repository.ClientRepository, identities IdentityStore, signer *CookieSigner) *Binder {
	return &Binder{clients: clients, identities: identities, signer: signer}
}

// Signer exposes the cookie signer so handlers can build a SelectionWriter.
func (b *Binder) Signer() *CookieSigner {
	return b.signer
}

// SelectActiveClient records clientID as the identity's active client.
// Ownership is checked before anything is written. If the metadata update
// fails the call returns a store error even though the cookie may already
// be set; retrying is safe.
func (b *Binder) SelectActiveClient(ctx context.Context, w SelectionWriter, identityID, clientID string) error {
	if clientID == "" {
		return apperror.Validation("client_id is required")
	}
	if identityID == "" {
		return apperror.Unauthenticated("login required")
	}

	client, err := b.loadClient(ctx, clientID)
	if err != nil {
		return err
	}
	if !client.OwnedBy(identityID) {
		return apperror.Forbidden("client does not belong to the current identity")
	}

	if w != nil {
		if err := w.WriteSelection(identityID, clientID); err != nil {
			logger.L().Warn("failed to write selection cookie", zap.String("identity_id", identityID), zap.Error(err))
		}
	}

	return b.identities.UpdateMetadata(ctx, identityID, map[string]string{
		models.MetadataActiveClientID: clientID,
	})
}

// GetActiveClient resolves the client the identity is acting for: the
// metadata selection while it still names an owned client, otherwise the
// oldest owned client.
func (b *Binder) GetActiveClient(ctx context.Context, identityID string) (*models.Client, error) {
	identity, err := b.identities.Lookup(ctx, identityID)
	if err != nil {
		return nil, err
	}

	if selected := identity.ActiveClientID(); selected != "" {
		client, err := b.clients.GetByID(ctx, selected)
		switch {
		case err == nil && client.OwnedBy(identityID):
			return client, nil
		case err != nil && !repository.IsNotFound(err):
			return nil, apperror.Store("failed to load active client", err)
		}
		logger.L().Debug("stale active client selection", zap.String("identity_id", identityID), zap.String("client_id", selected))
	}

	owned, err := b.clients.ListByOwner(ctx, identityID)
	if err != nil {
		return nil, apperror.Store("failed to list clients", err)
	}
	if len(owned) == 0 {
		return nil, apperror.NotFound("no client found for the current identity")
	}
	return &owned[0], nil
}

// SelectionHint returns the client id from a valid selection cookie, or "".
// It must not be used for authorization.
func (b *Binder) SelectionHint(c *fiber.Ctx, identityID string) string {
	token := c.Cookies(CookieName)
	if token == "" || identityID == "" {
		return ""
	}
	clientID, err := b.signer.Verify(token, identityID)
	if err != nil {
		return ""
	}
	return clientID
}

// ListClients returns the identity's clients, oldest first.
func (b *Binder) ListClients(ctx context.Context, identityID string) ([]models.Client, error) {
	clients, err := b.clients.ListByOwner(ctx, identityID)
	if err != nil {
		return nil, apperror.Store("failed to list clients", err)
	}
	return clients, nil
}

// CreateClient validates the name, enforces the per-owner quota and issues
// an API key. The raw key is returned once and only its hash is stored.
func (b *Binder) CreateClient(ctx context.Context, ownerID, name string) (*models.Client, string, error) {
	if ownerID == "" {
		return nil, "", apperror.Unauthenticated("login required")
	}
	if err := models.ValidateClientName(name); err != nil {
		return nil, "", apperror.ValidationDetails("invalid client name",
			"name must be 3 to 50 characters of letters, digits and spaces")
	}

	client := &models.Client{Name: name, OwnerID: ownerID}
	apiKey, err := client.IssueAPIKey()
	if err != nil {
		return nil, "", apperror.Store("failed to generate api key", err)
	}

	if err := b.clients.CreateWithQuota(ctx, client, models.MaxClientsPerOwner); err != nil {
		switch {
		case errors.Is(err, repository.ErrQuotaExceeded):
			return nil, "", apperror.Validation("client limit reached")
		case repository.IsNotFound(err):
			return nil, "", apperror.NotFound("identity not found")
		default:
			return nil, "", apperror.Store("failed to create client", err)
		}
	}
	return client, apiKey, nil
}

func (b *Binder) loadClient(ctx context.Context, clientID string) (*models.Client, error) {
	client, err := b.clients.GetByID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("client not found")
		}
		return nil, apperror.Store("failed to load client", err)
	}
	return client, nil
}
