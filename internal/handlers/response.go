package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"catalog/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const internalErrorMessage = "Unexpected error, check server logs"

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(c *fiber.Ctx, logger *slog.Logger, err error) error {
	var conflict *services.ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": conflict.Detail,
			"error":   "Bad Request",
		})
	case errors.Is(err, services.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": err.Error(),
			"error":   "Not Found",
		})
	default:
		if !errors.Is(err, services.ErrInternal) {
			logger.ErrorContext(c.UserContext(), "Unhandled service error", slog.String("error", err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": internalErrorMessage,
			"error":   "Internal Server Error",
		})
	}
}

func writeBadRequest(c *fiber.Ctx, message string, err error) error {
	body := fiber.Map{"message": message}
	if err != nil {
		body["error"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func writeValidationError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return writeBadRequest(c, "Validation failed", err)
	}

	errorMessages := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
