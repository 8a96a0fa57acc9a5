package controllers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/logger"
	"github.com/francopicc/ameba/internal/pkg/metrics"
	"github.com/francopicc/ameba/internal/pkg/tenancy"
	"github.com/francopicc/ameba/internal/pkg/usercontext"
)

// ClientController handles tenant creation and selection
type ClientController struct {
	binder  *tenancy.Binder
	metrics *metrics.Metrics
}

// NewClientController creates a new client controller
func NewClientController(binder *tenancy.Binder, m *metrics.Metrics) *ClientController {
	return &ClientController{binder: binder, metrics: m}
}

type clientCreated struct {
	models.Client
	APIKey string `json:"api_key"`
}

// HandleCreate creates a client for the logged-in identity. The API key is
// only ever returned here.
func (cc *ClientController) HandleCreate(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badJSON(c)
	}

	client, apiKey, err := cc.binder.CreateClient(c.UserContext(), usercontext.GetIdentityID(c), body.Name)
	if err != nil {
		return respondError(c, err)
	}
	cc.metrics.ClientCreated()
	logger.L().Info("client created", zap.String("client_id", client.ID), zap.String("owner_id", client.OwnerID))

	return c.Status(fiber.StatusOK).JSON([]clientCreated{{Client: *client, APIKey: apiKey}})
}

// HandleList returns the identity's clients and the current selection
func (cc *ClientController) HandleList(c *fiber.Ctx) error {
	identityID := usercontext.GetIdentityID(c)
	clients, err := cc.binder.ListClients(c.UserContext(), identityID)
	if err != nil {
		return respondError(c, err)
	}

	activeID := ""
	if active, err := cc.binder.GetActiveClient(c.UserContext(), identityID); err == nil {
		activeID = active.ID
	} else if !apperror.Is(err, apperror.KindNotFound) {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"data":             clients,
		"active_client_id": activeID,
		"selection_hint":   cc.binder.SelectionHint(c, identityID),
	})
}

// HandleSelect makes client_id the identity's active client
func (cc *ClientController) HandleSelect(c *fiber.Ctx) error {
	var body struct {
		ClientID string `json:"client_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badJSON(c)
	}

	err := cc.binder.SelectActiveClient(c.UserContext(), cc.binder.Signer().Writer(c), usercontext.GetIdentityID(c), body.ClientID)
	cc.metrics.Selection(err == nil)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleActive returns the client the identity is acting for
func (cc *ClientController) HandleActive(c *fiber.Ctx) error {
	client, err := activeClient(c, cc.binder)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": client})
}
