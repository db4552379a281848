package favorite

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/swapdeck/swapdeck-api/internal/middleware"
	"github.com/swapdeck/swapdeck-api/internal/services/respond"
	"github.com/swapdeck/swapdeck-api/internal/storage"
	"github.com/swapdeck/swapdeck-api/internal/utils"
)

const defaultPageSize = 20

// FavoriteService exposes the favorites API.
type FavoriteService struct {
	store      *storage.Store
	jwtService *utils.JWTService
}

// NewFavoriteService creates a FavoriteService.
func NewFavoriteService(store *storage.Store, jwtService *utils.JWTService) *FavoriteService {
	return &FavoriteService{store: store, jwtService: jwtService}
}

// AddToFavorites marks a listing as a favorite. Adding the same listing twice
// is not an error.
func (s *FavoriteService) AddToFavorites(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req struct {
		ListingID string `json:"listing_id"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	if _, err := s.store.GetListing(c.Context(), listingID); err != nil {
		return respond.Error(c, err)
	}

	if err := s.store.UpsertFavorite(c.Context(), userID, listingID); err != nil {
		return respond.Error(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true})
}

// RemoveFromFavorites removes a listing from the user's favorites.
func (s *FavoriteService) RemoveFromFavorites(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	listingID, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	if err := s.store.DeleteFavorite(c.Context(), userID, listingID); err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetFavorites returns the user's favorite listings.
func (s *FavoriteService) GetFavorites(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	limit := fiber.Query[int](c, "limit", defaultPageSize)
	offset := fiber.Query[int](c, "offset")

	favorites, total, err := s.store.ListFavorites(c.Context(), userID, limit, offset)
	if err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"favorites": favorites,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// CheckFavorite reports whether a listing is in the user's favorites.
func (s *FavoriteService) CheckFavorite(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	listingID, err := uuid.Parse(c.Params("listing_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	isFavorite, err := s.store.IsFavorite(c.Context(), userID, listingID)
	if err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{"is_favorite": isFavorite})
}
