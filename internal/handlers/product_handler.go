package handlers

import (
	"fmt"
	"log/slog"

	"catalog/internal/models"
	"catalog/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// DefaultMaxPageLimit caps the limit query parameter unless configured otherwise.
const DefaultMaxPageLimit = 100

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	logger   *slog.Logger
	maxLimit int
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, logger *slog.Logger, maxLimit int) *ProductHandler {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxPageLimit
	}
	return &ProductHandler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		maxLimit: maxLimit,
	}
}

// RegisterRoutes registers the product routes. The images purge route comes
// before /:id so that "images" is never taken for an id.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Post("/", h.HandleCreateProduct)
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Delete("/images", h.HandleDeleteAllImages)
	productRoutes.Get("/:term", h.HandleGetProduct)
	productRoutes.Patch("/:id", h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

type pageQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1"`
	Offset int `query:"offset" validate:"gte=0"`
}

// HandleCreateProduct creates a product and its images.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var in models.CreateProductInput
	if err := c.BodyParser(&in); err != nil {
		return writeBadRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(in); err != nil {
		return writeValidationError(c, err)
	}

	product, err := h.service.Create(c.UserContext(), in)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleGetProducts returns one page of products.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	var q pageQuery
	if err := c.QueryParser(&q); err != nil {
		return writeBadRequest(c, "Invalid pagination parameters", err)
	}
	if err := h.validate.Struct(q); err != nil {
		return writeValidationError(c, err)
	}
	if q.Limit > h.maxLimit {
		return writeBadRequest(c, fmt.Sprintf("limit must not exceed %d", h.maxLimit), nil)
	}

	products, err := h.service.FindAll(c.UserContext(), models.Pagination{Limit: q.Limit, Offset: q.Offset})
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return c.JSON(products)
}

// HandleGetProduct looks a product up by id, title or slug.
func (h *ProductHandler) HandleGetProduct(c *fiber.Ctx) error {
	term := utils.CopyString(c.Params("term"))

	product, err := h.service.FindOnePlain(c.UserContext(), term)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return c.JSON(product)
}

// HandleUpdateProduct applies a partial update.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, ok := h.productID(c)
	if !ok {
		return writeBadRequest(c, "Validation failed (uuid is expected)", nil)
	}

	var in models.UpdateProductInput
	if err := c.BodyParser(&in); err != nil {
		return writeBadRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(in); err != nil {
		return writeValidationError(c, err)
	}

	product, err := h.service.Update(c.UserContext(), id, in)
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct removes a product with its images.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, ok := h.productID(c)
	if !ok {
		return writeBadRequest(c, "Validation failed (uuid is expected)", nil)
	}

	if err := h.service.Remove(c.UserContext(), id); err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Product %s deleted successfully", id),
	})
}

// HandleDeleteAllImages purges every product image.
func (h *ProductHandler) HandleDeleteAllImages(c *fiber.Ctx) error {
	deleted, err := h.service.DeleteAll(c.UserContext())
	if err != nil {
		return writeServiceError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

func (h *ProductHandler) productID(c *fiber.Ctx) (string, bool) {
	id := utils.CopyString(c.Params("id"))
	if err := h.validate.Var(id, "required,uuid_rfc4122"); err != nil {
		return "", false
	}
	return id, true
}
