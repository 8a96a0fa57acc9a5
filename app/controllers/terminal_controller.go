package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/francopicc/ameba/internal/pkg/middleware"
	"github.com/francopicc/ameba/internal/pkg/terminal"
)

// TerminalController exposes payment links to storefronts and customers
type TerminalController struct {
	terminals *terminal.Service
}

// NewTerminalController creates a new terminal controller
func NewTerminalController(terminals *terminal.Service) *TerminalController {
	return &TerminalController{terminals: terminals}
}

// HandleCreate opens a terminal for the product in body.id
func (tc *TerminalController) HandleCreate(c *fiber.Ctx) error {
	var body struct {
		ID string `json:"id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badJSON(c)
	}

	clientID := ""
	if apiClient := middleware.APIClient(c); apiClient != nil {
		clientID = apiClient.ID
	}

	created, err := tc.terminals.CreateTerminalFor(c.UserContext(), body.ID, clientID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": created})
}

// HandleGet returns a terminal with its product and current usability
func (tc *TerminalController) HandleGet(c *fiber.Ctx) error {
	view, err := tc.terminals.GetTerminal(c.UserContext(), c.Params("urlId"))
	if err != nil {
		return respondError(c, err)
	}

	body := fiber.Map{
		"success": true,
		"data":    view.Terminal,
		"product": view.Product,
		"status":  view.Status,
		"usable":  view.Usability.Usable,
	}
	if view.Usability.Reason != "" {
		body["reason"] = view.Usability.Reason
	}
	return c.JSON(body)
}
