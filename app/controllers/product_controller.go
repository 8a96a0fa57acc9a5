package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/apperror"
	"github.com/francopicc/ameba/internal/pkg/tenancy"
)

var validate = validator.New()

// ProductController manages the active client's catalog
type ProductController struct {
	products repository.ProductRepository
	binder   *tenancy.Binder
}

// NewProductController creates a new product controller
func NewProductController(repos *repository.Repositories, binder *tenancy.Binder) *ProductController {
	return &ProductController{products: repos.Product, binder: binder}
}

type createProductRequest struct {
	Name        string   `json:"name" validate:"required,max=150"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Description string   `json:"description" validate:"required"`
	Amount      *float64 `json:"amount" validate:"required,gte=0"`
	Category    string   `json:"category" validate:"required,max=100"`
	OwnerID     string   `json:"owner_id" validate:"required"`
}

type updateProductRequest struct {
	Name        string   `json:"name" validate:"required,max=150"`
	Description string   `json:"description" validate:"required"`
	Amount      *float64 `json:"amount" validate:"required,gte=0"`
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperror.ValidationDetails("missing or invalid fields", verrs.Error())
	}
	return apperror.Validation("missing or invalid fields")
}

// HandleCreate adds a product for the active client. owner_id must name
// the active client.
func (pc *ProductController) HandleCreate(c *fiber.Ctx) error {
	var req createProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := validate.Struct(req); err != nil {
		return respondError(c, validationError(err))
	}

	active, err := activeClient(c, pc.binder)
	if err != nil {
		return respondError(c, err)
	}
	if req.OwnerID != active.ID {
		return respondError(c, apperror.Forbidden("owner_id must be the active client"))
	}

	product := &models.Product{
		OwnerID:     active.ID,
		Name:        req.Name,
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Price:       *req.Price,
		Amount:      *req.Amount,
		Status:      models.ProductStatusActive,
	}
	if err := pc.products.Create(c.UserContext(), product); err != nil {
		return respondError(c, apperror.Store("failed to create product", err))
	}
	return c.Status(fiber.StatusOK).JSON([]*models.Product{product})
}

// HandleList returns the active client's products
func (pc *ProductController) HandleList(c *fiber.Ctx) error {
	active, err := activeClient(c, pc.binder)
	if err != nil {
		return respondError(c, err)
	}
	products, err := pc.products.ListByOwner(c.UserContext(), active.ID)
	if err != nil {
		return respondError(c, apperror.Store("failed to list products", err))
	}
	return c.JSON(fiber.Map{"success": true, "data": products})
}

// HandleUpdate edits a product owned by the active client
func (pc *ProductController) HandleUpdate(c *fiber.Ctx) error {
	var req updateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return badJSON(c)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := validate.Struct(req); err != nil {
		return respondError(c, validationError(err))
	}

	active, err := pc.ownedProduct(c)
	if err != nil {
		return respondError(c, err)
	}

	updated, err := pc.products.UpdateOwned(c.UserContext(), active.ID, c.Params("id"), repository.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Amount:      *req.Amount,
	})
	if err != nil {
		if repository.IsNotFound(err) {
			return respondError(c, apperror.NotFound("product not found"))
		}
		return respondError(c, apperror.Store("failed to update product", err))
	}
	return c.JSON(fiber.Map{"success": true, "data": updated})
}

// HandleDelete removes a product owned by the active client
func (pc *ProductController) HandleDelete(c *fiber.Ctx) error {
	active, err := pc.ownedProduct(c)
	if err != nil {
		return respondError(c, err)
	}

	deleted, err := pc.products.DeleteOwned(c.UserContext(), active.ID, c.Params("id"))
	if err != nil {
		return respondError(c, apperror.Store("failed to delete product", err))
	}
	if deleted == 0 {
		return respondError(c, apperror.NotFound("product not found"))
	}
	return c.JSON(fiber.Map{"success": true})
}

// ownedProduct checks that the :id product exists and belongs to the
// active client before any mutation, returning the active client.
func (pc *ProductController) ownedProduct(c *fiber.Ctx) (*models.Client, error) {
	id := c.Params("id")
	if id == "" {
		return nil, apperror.Validation("product id is required")
	}
	active, err := activeClient(c, pc.binder)
	if err != nil {
		return nil, err
	}
	product, err := pc.products.GetByID(c.UserContext(), id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperror.NotFound("product not found")
		}
		return nil, apperror.Store("failed to load product", err)
	}
	if product.OwnerID != active.ID {
		return nil, apperror.Forbidden("product belongs to another client")
	}
	return active, nil
}
