package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/logger"
	"github.com/francopicc/ameba/internal/pkg/metrics"
	"github.com/francopicc/ameba/internal/pkg/terminal"
)

var validate = validator.New()

// CreatePaymentRequest is the public payment creation payload.
type CreatePaymentRequest struct {
	ClientID    string  `json:"client_id" validate:"required"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	CallbackURL string  `json:"callback_url" validate:"required,url"`
	Currency    string  `json:"currency" validate:"omitempty,len=3,alpha"`
	ProductID   string  `json:"product_id"`
	Email       string  `json:"email" validate:"omitempty,email"`
	TerminalID  string  `json:"terminal_id"`
}

// PaymentSummary is a payment row with its product name for listings.
type PaymentSummary struct {
	models.Payment
	ProductName string `json:"product_name"`
}

// Stats aggregates a client's approved payments.
type Stats struct {
	TotalSales   int     `json:"total_sales"`
	TotalRevenue float64 `json:"total_revenue"`
	Pending      int     `json:"pending"`
}

// Service records payments and applies provider results to them and to
// the terminal they were made through.
type Service struct {
	payments  repository.PaymentRepository
	clients   repository.ClientRepository
	products  repository.ProductRepository
	terminals *terminal.Service
	sandbox   bool
	metrics   *metrics.Metrics
}

type Option func(*Service)

// WithSandbox makes new payments approved on insert.
func WithSandbox(enabled bool) Option {
	return func(s *Service) {
		s.sandbox = enabled
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(repos *repository.Repositories, terminals *terminal.Service, opts ...Option) *Service {
	s := &Service{
		payments:  repos.Payment,
		clients:   repos.Client,
		products:  repos.Product,
		terminals: terminals,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Sandbox() bool {
	return s.sandbox
}

// CreatePayment records a payment for a client, optionally through a
// terminal. A terminal must be usable and belong to the same client, and
// it takes exactly one payment: the payment claims it before the row is
// written, in sandbox and provider mode alike.
func (s *Service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.TerminalID = strings.TrimSpace(req.TerminalID)
	req.ProductID = strings.TrimSpace(req.ProductID)
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, apperror.ValidationDetails("missing or invalid fields", verrs.Error())
		}
		return nil, apperror.Validation("missing or invalid fields")
	}

	if _, err := s.clients.GetByID(ctx, req.ClientID); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("invalid client_id: client not found")
		}
		return nil, apperror.Store("failed to load client", err)
	}

	payment := &models.Payment{
		ID:          uuid.NewString(),
		ClientID:    req.ClientID,
		Amount:      req.Amount,
		Currency:    strings.ToUpper(req.Currency),
		CallbackURL: req.CallbackURL,
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Status:      models.PaymentStatusPending,
	}
	if payment.Currency == "" {
		payment.Currency = models.DefaultCurrency
	}
	if s.sandbox {
		payment.Status = models.PaymentStatusApproved
	}

	var term *models.Terminal
	if req.TerminalID != "" {
		view, err := s.terminals.GetTerminal(ctx, req.TerminalID)
		if err != nil {
			return nil, err
		}
		term = view.Terminal
		if term.ClientID != req.ClientID {
			return nil, apperror.Forbidden("terminal does not belong to client")
		}
		if !view.Usability.Usable {
			return nil, &apperror.Error{Kind: apperror.KindConflict, Message: "terminal not usable", Details: view.Usability.Reason}
		}
		payment.TerminalID = &term.ID
		if req.ProductID == "" {
			req.ProductID = term.ProductID
		}
	}

	if req.ProductID != "" {
		product, err := s.products.GetByID(ctx, req.ProductID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, apperror.NotFound("product not found")
			}
			return nil, apperror.Store("failed to load product", err)
		}
		if product.OwnerID != req.ClientID {
			return nil, apperror.Forbidden("product does not belong to client")
		}
		payment.ProductID = &product.ID
	}

	// the usability read above may be stale; the claim is the real check
	if term != nil {
		if err := s.terminals.ClaimForPayment(ctx, term.ID, payment.ID); err != nil {
			return nil, err
		}
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		if term != nil {
			if relErr := s.terminals.ReleaseClaim(ctx, term.ID, payment.ID); relErr != nil {
				logger.L().Warn("failed to release terminal after insert error",
					zap.String("terminal_id", term.ID),
					zap.Error(relErr),
				)
			}
		}
		return nil, apperror.Store("failed to create payment", err)
	}

	if term != nil && s.sandbox {
		// the row is written; the terminal stays claimed and unusable if this fails
		if err := s.terminals.MarkApproved(ctx, term.ID, payment.ID); err != nil {
			logger.L().Warn("sandbox terminal approval failed",
				zap.String("payment_id", payment.ID),
				zap.String("terminal_id", term.ID),
				zap.Error(err),
			)
		}
	}

	s.metrics.PaymentCreated(payment.Status)
	logger.L().Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("client_id", payment.ClientID),
		zap.String("status", payment.Status),
		zap.Bool("sandbox", s.sandbox),
	)
	return payment, nil
}

// ApplyProviderResult settles a pending payment. Repeating the same result
// is a no-op; a different final result is a conflict. The terminal is
// settled first so a failure there leaves the payment pending and the
// provider's retry can finish the job. The link's deadline does not apply.
func (s *Service) ApplyProviderResult(ctx context.Context, paymentID, status string) (*models.Payment, error) {
	if status != models.PaymentStatusApproved && status != models.PaymentStatusRejected {
		return nil, apperror.Validation("status must be approved or rejected")
	}

	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPending {
		s.metrics.PaymentResult(status, false)
		if payment.Status != status {
			return nil, apperror.Conflict("payment already " + payment.Status)
		}
		return payment, nil
	}

	if payment.TerminalID != nil {
		if err := s.settleTerminal(ctx, *payment.TerminalID, payment.ID, status); err != nil {
			logger.L().Warn("terminal refused payment result",
				zap.String("payment_id", payment.ID),
				zap.String("terminal_id", *payment.TerminalID),
				zap.Error(err),
			)
			return nil, err
		}
	}

	applied, err := s.payments.TransitionStatus(ctx, payment.ID, models.PaymentStatusPending, status)
	if err != nil {
		return nil, apperror.Store("failed to update payment", err)
	}
	s.metrics.PaymentResult(status, applied)

	if !applied {
		current, err := s.load(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if current.Status != status {
			return nil, apperror.Conflict("payment already " + current.Status)
		}
		return current, nil
	}
	payment.Status = status
	return payment, nil
}

func (s *Service) settleTerminal(ctx context.Context, terminalID, paymentID, status string) error {
	if status == models.PaymentStatusApproved {
		return s.terminals.MarkApproved(ctx, terminalID, paymentID)
	}
	return s.terminals.MarkRejected(ctx, terminalID, paymentID, models.TerminalStatusRejected)
}

// ListPayments returns the client's payments, newest first.
func (s *Service) ListPayments(ctx context.Context, clientID string) ([]PaymentSummary, error) {
	payments, err := s.payments.ListByClient(ctx, clientID)
	if err != nil {
		return nil, apperror.Store("failed to list payments", err)
	}

	names := make(map[string]string)
	out := make([]PaymentSummary, 0, len(payments))
	for _, p := range payments {
		row := PaymentSummary{Payment: p, ProductName: "-"}
		if p.ProductID != nil {
			name, ok := names[*p.ProductID]
			if !ok {
				name = "-"
				if product, err := s.products.GetByID(ctx, *p.ProductID); err == nil {
					name = product.Name
				} else if !repository.IsNotFound(err) {
					logger.L().Warn("failed to load product for payment", zap.String("payment_id", p.ID), zap.Error(err))
				}
				names[*p.ProductID] = name
			}
			row.ProductName = name
		}
		out = append(out, row)
	}
	return out, nil
}

// Stats counts approved sales and their revenue for a client.
func (s *Service) Stats(ctx context.Context, clientID string) (*Stats, error) {
	payments, err := s.payments.ListByClient(ctx, clientID)
	if err != nil {
		return nil, apperror.Store("failed to list payments", err)
	}
	stats := &Stats{}
	for _, p := range payments {
		switch p.Status {
		case models.PaymentStatusApproved:
			stats.TotalSales++
			stats.TotalRevenue += p.Amount
		case models.PaymentStatusPending:
			stats.Pending++
		}
	}
	return stats, nil
}

func (s *Service) load(ctx context.Context, paymentID string) (*models.Payment, error) {
	if paymentID == "" {
		return nil, apperror.Validation("payment_id is required")
	}
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("payment not found")
		}
		return nil, apperror.Store("failed to load payment", err)
	}
	return payment, nil
}
