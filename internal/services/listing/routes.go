package listing

import (
	"github.com/gofiber/fiber/v3"

	"github.com/swapdeck/swapdeck-api/internal/middleware"
)

// SetupRoutes registers the listing API routes.
func (s *ListingService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/listings")

	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/create", s.CreateListing)
	api.Get("/my", s.GetMyListings)
	api.Get("/:id", s.GetListing)
	api.Put("/:id", s.UpdateListing)
	api.Delete("/:id", s.DeleteListing)
}

// SetupPublicRoutes registers the routes that work without auth.
func (s *ListingService) SetupPublicRoutes(app *fiber.App) {
	app.Get("/api/listings", s.GetPublicListings)
}
