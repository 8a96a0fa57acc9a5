package identity

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/logger"
	appsession "github.com/francopicc/ameba/internal/pkg/session"
)

// Resolver maps a request to the identity behind it. A nil result means
// anonymous; resolution never fails the request.
type Resolver interface {
	ResolveIdentity(c *fiber.Ctx) *models.Identity
}

// SessionResolver reads the identity id from the server-side session on
// every call. Nothing is cached between requests.
type SessionResolver struct {
	store      *session.Store
	identities repository.IdentityRepository
}

func NewSessionResolver(store *session.Store, identities repository.IdentityRepository) *SessionResolver {
	return &SessionResolver{store: store, identities: identities}
}

func (r *SessionResolver) ResolveIdentity(c *fiber.Ctx) *models.Identity {
	id := appsession.IdentityID(r.store, c)
	if id == "" {
		return nil
	}
	identity, err := r.identities.GetByID(c.UserContext(), id)
	if err != nil {
		if !repository.IsNotFound(err) {
			logger.L().Warn("identity lookup failed", zap.String("identity_id", id), zap.Error(err))
		}
		return nil
	}
	return identity
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(c *fiber.Ctx) *models.Identity

func (f ResolverFunc) ResolveIdentity(c *fiber.Ctx) *models.Identity {
	return f(c)
}
