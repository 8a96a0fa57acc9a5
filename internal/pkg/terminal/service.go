package terminal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/logger"
	"github.com/francopicc/ameba/internal/pkg/metrics"
	"github.com/francopicc/ameba/internal/pkg/shortener"
)

const slugAttempts = 3

// View is what the public terminal endpoint returns.
type View struct {
	Terminal  *models.Terminal     `json:"terminal"`
	Product   models.ProductPublic `json:"product"`
	Usability models.Usability     `json:"usability"`
	// Status is the stored status with pending and expired folded in.
	Status    string               `json:"status"`
}

// Service manages payment links: creation, lookup, usability and the
// status transitions driven by payment results.
type Service struct {
	terminals repository.TerminalRepository
	products  repository.ProductRepository
	clients   repository.ClientRepository
	ttl       time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
}

type Option func(*Service)

// WithTTL sets how long a new terminal stays usable.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(repos *repository.Repositories, opts ...Option) *Service {
	s := &Service{
		terminals: repos.Terminal,
		products:  repos.Product,
		clients:   repos.Client,
		ttl:       models.DefaultTerminalTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// CreateTerminal opens a payment link for productID. The terminal belongs
// to the product's owner client.
func (s *Service) CreateTerminal(ctx context.Context, productID string) (*models.Terminal, error) {
	return s.CreateTerminalFor(ctx, productID, "")
}

// CreateTerminalFor is CreateTerminal for a caller acting as clientID. A
// product of another client is refused. An empty clientID skips the check.
func (s *Service) CreateTerminalFor(ctx context.Context, productID, clientID string) (*models.Terminal, error) {
	if productID == "" {
		return nil, apperror.Validation("id is required")
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("product not found")
		}
		return nil, apperror.Store("failed to load product", err)
	}

	if clientID != "" && product.OwnerID != clientID {
		return nil, apperror.Forbidden("product belongs to another client")
	}

	client, err := s.clients.GetByID(ctx, product.OwnerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("product owner not found")
		}
		return nil, apperror.Store("failed to load product owner", err)
	}

	now := s.now()
	terminal := &models.Terminal{
		ProductID: product.ID,
		ClientID:  client.ID,
		Status:    models.TerminalStatusActive,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	for attempt := 1; ; attempt++ {
		slug, err := shortener.GenerateSecureSlug(shortener.TerminalSlugLength)
		if err != nil {
			return nil, apperror.Store("failed to generate terminal id", err)
		}
		terminal.ID = ""
		terminal.URLID = slug

		err = s.terminals.Create(ctx, terminal)
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < slugAttempts {
			logger.L().Warn("terminal url id collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		return nil, apperror.Store("failed to create terminal", err)
	}

	s.metrics.TerminalCreated()
	logger.L().Info("terminal created",
		zap.String("terminal_id", terminal.ID),
		zap.String("client_id", terminal.ClientID),
		zap.Time("expires_at", terminal.ExpiresAt),
	)
	return terminal, nil
}

// GetTerminal loads a terminal by its public url id together with the
// product's public fields and its usability right now.
func (s *Service) GetTerminal(ctx context.Context, urlID string) (*View, error) {
	if urlID == "" {
		return nil, apperror.Validation("terminal id is required")
	}
	if !shortener.IsValidSlug(urlID, shortener.TerminalSlugLength) {
		return nil, apperror.NotFound("terminal not found")
	}

	terminal, err := s.terminals.GetByURLID(ctx, urlID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("terminal not found")
		}
		return nil, apperror.Store("failed to load terminal", err)
	}

	product, err := s.products.GetByID(ctx, terminal.ProductID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("product not found")
		}
		return nil, apperror.Store("failed to load product", err)
	}

	now := s.now()
	return &View{
		Terminal:  terminal,
		Product:   product.Public(),
		Usability: EvaluateUsability(terminal, now),
		Status:    terminal.EffectiveStatus(now),
	}, nil
}

// EvaluateUsability reports whether t can still take a payment at now.
func EvaluateUsability(t *models.Terminal, now time.Time) models.Usability {
	return t.UsabilityAt(now)
}

// ClaimForPayment binds paymentID to an active, unclaimed, unexpired
// terminal. Only one payment ever holds a terminal; every other caller
// gets a conflict carrying the usability reason.
func (s *Service) ClaimForPayment(ctx context.Context, terminalID, paymentID string) error {
	now := s.now()
	applied, err := s.terminals.Claim(ctx, terminalID, paymentID, now)
	if err != nil {
		return apperror.Store("failed to claim terminal", err)
	}
	s.metrics.TerminalTransition(models.TerminalStatusPending, applied)
	if applied {
		return nil
	}

	current, err := s.load(ctx, terminalID)
	if err != nil {
		return err
	}
	reason := current.UsabilityAt(now).Reason
	if reason == "" {
		reason = "not_active:" + models.TerminalStatusPending
	}
	return &apperror.Error{Kind: apperror.KindConflict, Message: "terminal not usable", Details: reason}
}

// ReleaseClaim frees a terminal whose payment was never recorded.
func (s *Service) ReleaseClaim(ctx context.Context, terminalID, paymentID string) error {
	if err := s.terminals.Release(ctx, terminalID, paymentID); err != nil {
		return apperror.Store("failed to release terminal", err)
	}
	return nil
}

// MarkApproved settles a terminal held by paymentID as approved. The
// deadline does not apply: the claim was taken while the link was usable.
// Repeating the call for the same payment is a no-op.
func (s *Service) MarkApproved(ctx context.Context, terminalID, paymentID string) error {
	return s.settle(ctx, terminalID, paymentID, models.TerminalStatusApproved)
}

// MarkRejected settles a terminal held by paymentID with a rejection
// status. Repeating the same rejection is a no-op.
func (s *Service) MarkRejected(ctx context.Context, terminalID, paymentID, status string) error {
	if !models.IsRejection(status) {
		return apperror.Validation("invalid rejection status")
	}
	return s.settle(ctx, terminalID, paymentID, status)
}

func (s *Service) settle(ctx context.Context, terminalID, paymentID, status string) error {
	applied, err := s.terminals.Settle(ctx, terminalID, paymentID, status)
	if err != nil {
		return apperror.Store("failed to settle terminal", err)
	}
	s.metrics.TerminalTransition(status, applied)
	if applied {
		return nil
	}

	current, err := s.load(ctx, terminalID)
	if err != nil {
		return err
	}
	if !current.ClaimedBy(paymentID) {
		return apperror.Conflict("terminal is held by another payment")
	}
	if current.Status == status {
		return nil
	}
	return apperror.Conflict("terminal is " + current.Status)
}

func (s *Service) load(ctx context.Context, terminalID string) (*models.Terminal, error) {
	terminal, err := s.terminals.GetByID(ctx, terminalID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("terminal not found")
		}
		return nil, apperror.Store("failed to load terminal", err)
	}
	return terminal, nil
}
