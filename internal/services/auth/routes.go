package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/swapdeck/swapdeck-api/internal/middleware"
)

// SetupRoutes registers the auth API routes.
func (s *AuthService) SetupRoutes(app *fiber.App) {
	app.Post("/api/auth/telegram", s.TelegramAuthHandler)

	protected := app.Group("/api")
	protected.Use(middleware.AuthMiddleware(s.jwtService))

	protected.Get("/me", s.Me)
}
