package cloudinary

import (
	"github.com/gofiber/fiber/v3"

	"github.com/swapdeck/swapdeck-api/internal/middleware"
)

// SetupRoutes registers the upload API routes.
func (s *CloudinaryService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(s.jwtService))

	protected.Get("/upload/params", s.GenerateUploadParams)
}
