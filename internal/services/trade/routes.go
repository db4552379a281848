package trade

import (
	"github.com/gofiber/fiber/v3"

	"github.com/swapdeck/swapdeck-api/internal/middleware"
)

// SetupRoutes registers the trade API routes. All of them require auth.
func (s *TradeService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/trades")

	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/", s.CreateTrade)
	api.Get("/", s.GetTrades)
	api.Get("/:id", s.GetTrade)

	api.Post("/:id/accept", s.AcceptTrade)
	api.Post("/:id/reject", s.RejectTrade)
	api.Post("/:id/cancel", s.CancelTrade)
	api.Post("/:id/complete", s.CompleteTrade)
}
