package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/logger"
)

const minPasswordLength = 8

// Provider owns identities: local credentials, OAuth accounts and the
// per-identity metadata bag.
type Provider struct {
	identities repository.IdentityRepository
	now        func() time.Time
}

func NewProvider(identities repository.IdentityRepository) *Provider {
	return &Provider{identities: identities, now: time.Now}
}

// Lookup returns the identity or a NotFound error.
func (p *Provider) Lookup(ctx context.Context, id string) (*models.Identity, error) {
	if id == "" {
		return nil, apperror.NotFound("identity not found")
	}
	identity, err := p.identities.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("identity not found")
		}
		return nil, apperror.Store("failed to load identity", err)
	}
	return identity, nil
}

// UpdateMetadata merges patch into the identity's metadata.
func (p *Provider) UpdateMetadata(ctx context.Context, id string, patch map[string]string) error {
	if err := p.identities.PatchMetadata(ctx, id, patch); err != nil {
		if repository.IsNotFound(err) {
			return apperror.NotFound("identity not found")
		}
		return apperror.Store("failed to update identity metadata", err)
	}
	return nil
}

// Register creates a password identity.
func (p *Provider) Register(ctx context.Context, name, email, password string) (*models.Identity, error) {
	if len(password) < minPasswordLength {
		return nil, apperror.Validation("password must be at least 8 characters")
	}
	identity, err := models.NewIdentity(name, email, password)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, apperror.ValidationDetails("invalid registration", verrs.Error())
		}
		return nil, apperror.Store("failed to prepare identity", err)
	}

	if _, err := p.identities.GetByEmail(ctx, identity.Email); err == nil {
		return nil, apperror.Conflict("email already registered")
	} else if !repository.IsNotFound(err) {
		return nil, apperror.Store("failed to check email", err)
	}

	if err := p.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("email already registered")
		}
		return nil, apperror.Store("failed to create identity", err)
	}
	return identity, nil
}

// Authenticate checks email and password. Failures never say which half was wrong.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	identity, err := p.identities.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.Unauthenticated("invalid credentials")
		}
		return nil, apperror.Store("failed to load identity", err)
	}
	if !identity.CheckPassword(password) {
		return nil, apperror.Unauthenticated("invalid credentials")
	}
	p.touch(ctx, identity)
	return identity, nil
}

// OAuthProfile is the part of an OAuth user the provider keeps.
type OAuthProfile struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
}

// LoginWithProvider finds or creates the identity linked to an OAuth account.
// An existing identity with the same email is linked instead of duplicated.
func (p *Provider) LoginWithProvider(ctx context.Context, profile OAuthProfile) (*models.Identity, error) {
	if profile.Provider == "" || profile.ProviderUserID == "" {
		return nil, apperror.Validation("incomplete provider profile")
	}

	var identity *models.Identity
	account, err := p.identities.GetProviderAccount(ctx, profile.Provider, profile.ProviderUserID)
	switch {
	case err == nil:
		identity, err = p.identities.GetByID(ctx, account.IdentityID)
		if err != nil {
			return nil, apperror.Store("failed to load linked identity", err)
		}
	case repository.IsNotFound(err):
		identity, err = p.findOrCreateByEmail(ctx, profile)
		if err != nil {
			return nil, err
		}
		account = &models.ProviderAccount{
			IdentityID:     identity.ID,
			Provider:       profile.Provider,
			ProviderUserID: profile.ProviderUserID,
		}
	default:
		return nil, apperror.Store("failed to load provider account", err)
	}

	account.AccessToken = profile.AccessToken
	account.RefreshToken = profile.RefreshToken
	if !profile.ExpiresAt.IsZero() {
		exp := profile.ExpiresAt
		account.ExpiresAt = &exp
	}
	if err := p.identities.SaveProviderAccount(ctx, account); err != nil {
		return nil, apperror.Store("failed to save provider account", err)
	}

	p.touch(ctx, identity)
	return identity, nil
}

func (p *Provider) findOrCreateByEmail(ctx context.Context, profile OAuthProfile) (*models.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return nil, apperror.Validation("provider did not return an email")
	}
	identity, err := p.identities.GetByEmail(ctx, email)
	if err == nil {
		return identity, nil
	}
	if !repository.IsNotFound(err) {
		return nil, apperror.Store("failed to load identity", err)
	}

	identity, err = models.NewIdentity(profile.Name, email, "")
	if err != nil {
		return nil, apperror.ValidationDetails("invalid provider profile", err.Error())
	}
	if err := p.identities.Create(ctx, identity); err != nil {
		return nil, apperror.Store("failed to create identity", err)
	}
	return identity, nil
}

func (p *Provider) touch(ctx context.Context, identity *models.Identity) {
	if err := p.identities.TouchLogin(ctx, identity.ID, p.now()); err != nil {
		logger.L().Warn("failed to record login time", zap.String("identity_id", identity.ID), zap.Error(err))
	}
}
