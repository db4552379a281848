package favorite

import (
	"github.com/gofiber/fiber/v3"

	"github.com/swapdeck/swapdeck-api/internal/middleware"
)

// SetupRoutes registers the favorites API routes.
func (s *FavoriteService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/favorites")

	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/", s.GetFavorites)
	api.Post("/", s.AddToFavorites)
	api.Delete("/:listing_id", s.RemoveFromFavorites)
	api.Get("/:listing_id/check", s.CheckFavorite)
}
