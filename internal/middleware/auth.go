package middleware

import (
	"context"
	"strings"

	"bazaar/internal/models"

	"github.com/gofiber/fiber/v2"
)

// TokenVerifier resolves a bearer token to the user it was issued for.
type TokenVerifier interface {
	Verify(token string) (uint, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthRequired enforces authentication for protected routes. On success the
// caller's ID is stored in c.Locals("userID") and in the request context.
func AuthRequired(tokens TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Not authorized, no token"))
		}

		token, ok := BearerToken(authHeader)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid authorization header format"))
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Not authorized, token failed"))
		}

		SetUserID(c, userID)
		return c.Next()
	}
}

// OptionalUserID resolves the caller on public routes. A missing or invalid
// token simply yields no user.
func OptionalUserID(c *fiber.Ctx, tokens TokenVerifier) (uint, bool) {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid, true
	}
	token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return 0, false
	}
	userID, err := tokens.Verify(token)
	if err != nil {
		return 0, false
	}
	SetUserID(c, userID)
	return userID, true
}

// SetUserID records the authenticated caller for handlers and for logging.
func SetUserID(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}
