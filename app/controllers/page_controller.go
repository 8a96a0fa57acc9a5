package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"
	"go.uber.org/zap"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/checkout"
	"github.com/francopicc/ameba/internal/pkg/constants"
	"github.com/francopicc/ameba/internal/pkg/logger"
	"github.com/francopicc/ameba/internal/pkg/tenancy"
	"github.com/francopicc/ameba/internal/pkg/terminal"
	"github.com/francopicc/ameba/internal/pkg/usercontext"
)

// PageController renders the server side pages
type PageController struct {
	repos     *repository.Repositories
	binder    *tenancy.Binder
	terminals *terminal.Service
	checkout  *checkout.Service
}

// NewPageController creates a new page controller
func NewPageController(repos *repository.Repositories, binder *tenancy.Binder, terminals *terminal.Service, svc *checkout.Service) *PageController {
	return &PageController{repos: repos, binder: binder, terminals: terminals, checkout: svc}
}

func (pc *PageController) HandleStart(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	}
	return c.Redirect(constants.LoginRoute, fiber.StatusSeeOther)
}

// HandleDashboard shows the active client's catalog and sales
func (pc *PageController) HandleDashboard(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userCtx := usercontext.GetUserContext(c)

	clients, err := pc.binder.ListClients(ctx, userCtx.IdentityID)
	if err != nil {
		return pc.renderError(c, err)
	}

	data := fiber.Map{
		"Title":     "Dashboard",
		"User":      userCtx,
		"CSRF":      csrfToken(c),
		"Flash":     flash.Get(c),
		"Clients":   clients,
		"CanCreate": len(clients) < models.MaxClientsPerOwner,
		"Hint":      pc.binder.SelectionHint(c, userCtx.IdentityID),
	}

	active, err := pc.binder.GetActiveClient(ctx, userCtx.IdentityID)
	switch {
	case err == nil:
		data["Active"] = active
		products, err := pc.repos.Product.ListByOwner(ctx, active.ID)
		if err != nil {
			return pc.renderError(c, apperror.Store("failed to list products", err))
		}
		payments, err := pc.checkout.ListPayments(ctx, active.ID)
		if err != nil {
			return pc.renderError(c, err)
		}
		stats, err := pc.checkout.Stats(ctx, active.ID)
		if err != nil {
			return pc.renderError(c, err)
		}
		data["Products"] = products
		data["Payments"] = payments
		data["Stats"] = stats
	case !apperror.Is(err, apperror.KindNotFound):
		return pc.renderError(c, err)
	}

	return c.Render("dashboard/index", data, "layouts/main")
}

// HandleDashboardSelect is the form variant of POST /api/client/select
func (pc *PageController) HandleDashboardSelect(c *fiber.Ctx) error {
	err := pc.binder.SelectActiveClient(c.UserContext(), pc.binder.Signer().Writer(c), usercontext.GetIdentityID(c), c.FormValue("client_id"))
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": publicMessage(err)}).Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	}
	return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
}

// HandleDashboardCreateClient is the form variant of POST /api/client
func (pc *PageController) HandleDashboardCreateClient(c *fiber.Ctx) error {
	client, apiKey, err := pc.binder.CreateClient(c.UserContext(), usercontext.GetIdentityID(c), c.FormValue("name"))
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": publicMessage(err)}).Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	}
	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": "Client " + client.Name + " created. API key (shown once): " + apiKey,
	}).Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
}

// HandleSettings shows the identity and its clients
func (pc *PageController) HandleSettings(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	clients, err := pc.binder.ListClients(c.UserContext(), userCtx.IdentityID)
	if err != nil {
		return pc.renderError(c, err)
	}
	return c.Render("settings/index", fiber.Map{
		"Title":   "Settings",
		"User":    userCtx,
		"CSRF":    csrfToken(c),
		"Flash":   flash.Get(c),
		"Clients": clients,
	}, "layouts/main")
}

// HandleTerminalPage is the customer facing payment link
func (pc *PageController) HandleTerminalPage(c *fiber.Ctx) error {
	view, err := pc.terminals.GetTerminal(c.UserContext(), c.Params("urlId"))
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) || apperror.Is(err, apperror.KindValidation) {
			return pc.renderNotFound(c)
		}
		return pc.renderError(c, err)
	}
	if !view.Usability.Usable {
		return pc.renderNotFound(c)
	}
	return c.Render("terminal/show", fiber.Map{
		"Title":    view.Product.Name,
		"Terminal": view.Terminal,
		"Product":  view.Product,
		"Sandbox":  pc.checkout.Sandbox(),
	}, "layouts/main")
}

// HandleTerminalResult renders the page a provider returns the customer to
func (pc *PageController) HandleTerminalResult(c *fiber.Ctx) error {
	outcome := c.Params("outcome")
	if outcome != "success" && outcome != "error" {
		return pc.renderNotFound(c)
	}
	return c.Render("terminal/result", fiber.Map{
		"Title":   "Payment " + outcome,
		"Success": outcome == "success",
	}, "layouts/main")
}

func (pc *PageController) renderNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).Render("not_found", fiber.Map{
		"Title": "Not found",
	}, "layouts/main")
}

func (pc *PageController) renderError(c *fiber.Ctx, err error) error {
	logger.L().Error("page failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(apperror.StatusOf(apperror.KindOf(err))).Render("error", fiber.Map{
		"Title":   "Error",
		"Message": publicMessage(err),
	}, "layouts/main")
}

// publicMessage returns what a user may see of err.
func publicMessage(err error) string {
	if apperror.KindOf(err) == apperror.KindStore {
		return "Something went wrong, please try again"
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
