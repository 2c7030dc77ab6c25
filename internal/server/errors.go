package server

import (
	"errors"
	"log/slog"

	"bazaar/internal/middleware"
	"bazaar/internal/models"

	"github.com/gofiber/fiber/v2"
)

// statusForError maps service errors to HTTP status codes. Acting on
// someone else's ad answers 401 and duplicate accounts answer 400, which is
// what existing clients expect.
func statusForError(err error) int {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeValidation, models.CodeConflict:
		return fiber.StatusBadRequest
	case models.CodeUnauthorized, models.CodeForbidden:
		return fiber.StatusUnauthorized
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeStorage:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server-side failures are
// logged with their cause.
func respondError(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status >= fiber.StatusInternalServerError {
		logServerError(c, err)
	}
	return models.RespondWithError(c, status, err)
}

func logServerError(c *fiber.Ctx, err error) {
	middleware.Logger.ErrorContext(c.UserContext(), "request failed",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.String("error", err.Error()))
}
