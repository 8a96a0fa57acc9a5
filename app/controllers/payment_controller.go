package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/checkout"
	"github.com/francopicc/ameba/internal/pkg/logger"
	"github.com/francopicc/ameba/internal/pkg/middleware"
	"github.com/francopicc/ameba/internal/pkg/tenancy"
)

// PaymentController handles payment creation, listings and provider callbacks
type PaymentController struct {
	checkout      *checkout.Service
	binder        *tenancy.Binder
	webhookSecret string
}

// NewPaymentController creates a new payment controller
func NewPaymentController(svc *checkout.Service, binder *tenancy.Binder, webhookSecret string) *PaymentController {
	return &PaymentController{checkout: svc, binder: binder, webhookSecret: webhookSecret}
}

// HandleCreate records a payment. A request authenticated with a client
// API key may only pay into that client.
func (pc *PaymentController) HandleCreate(c *fiber.Ctx) error {
	var req checkout.CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}

	if apiClient := middleware.APIClient(c); apiClient != nil {
		switch strings.TrimSpace(req.ClientID) {
		case "":
			req.ClientID = apiClient.ID
		case apiClient.ID:
		default:
			return respondError(c, apperror.Forbidden("client_id does not match API key"))
		}
	}

	payment, err := pc.checkout.CreatePayment(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Payment created successfully",
		"payment": payment,
	})
}

// HandleList returns the active client's payments
func (pc *PaymentController) HandleList(c *fiber.Ctx) error {
	active, err := activeClient(c, pc.binder)
	if err != nil {
		return respondError(c, err)
	}
	rows, err := pc.checkout.ListPayments(c.UserContext(), active.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": rows})
}

// HandleStats returns sales totals for the active client
func (pc *PaymentController) HandleStats(c *fiber.Ctx) error {
	active, err := activeClient(c, pc.binder)
	if err != nil {
		return respondError(c, err)
	}
	stats, err := pc.checkout.Stats(c.UserContext(), active.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}

// HandleProviderWebhook applies a signed provider result to a payment
func (pc *PaymentController) HandleProviderWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get(checkout.SignatureHeader)

	if !checkout.VerifySignature(rawBody, signature, pc.webhookSecret) {
		logger.L().Warn("rejected payment webhook with invalid signature", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := checkout.ParseProviderEvent(rawBody)
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 15*time.Second)
	defer cancel()

	payment, err := pc.checkout.ApplyProviderResult(ctx, event.PaymentID, event.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true, "payment": payment})
}
