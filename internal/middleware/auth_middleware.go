package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/swapdeck/swapdeck-api/internal/utils"
)

// UserIDKey is the Locals key the authenticated user's UUID is stored under.
const UserIDKey = "userID"

// AuthMiddleware rejects requests without a valid Bearer token and stores the
// authenticated user's ID in the request locals.
func AuthMiddleware(jwtService *utils.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		userID, err := jwtService.ExtractUserID(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(UserIDKey, userID)

		return c.Next()
	}
}

// UserID returns the authenticated user's ID from the request locals. It
// panics if called on a route that did not pass through AuthMiddleware.
func UserID(c fiber.Ctx) uuid.UUID {
	return c.Locals(UserIDKey).(uuid.UUID)
}
