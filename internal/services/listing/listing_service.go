package listing

import (
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/swapdeck/swapdeck-api/internal/middleware"
	"github.com/swapdeck/swapdeck-api/internal/models"
	"github.com/swapdeck/swapdeck-api/internal/services/respond"
	"github.com/swapdeck/swapdeck-api/internal/storage"
	"github.com/swapdeck/swapdeck-api/internal/utils"
)

const defaultPageSize = 20

var validConditions = map[string]bool{
	"new": true, "excellent": true, "good": true,
	"used": true, "needs_repair": true, "damaged": true,
}

// RequestImage is one image in a create or update payload. The raw Cloudinary
// upload response is forwarded by the client so the server can extract a
// preview URL and metadata.
type RequestImage struct {
	URL                string          `json:"url"`
	PublicID           string          `json:"public_id"`
	FileName           string          `json:"file_name"`
	IsMain             bool            `json:"is_main"`
	CloudinaryResponse json.RawMessage `json:"cloudinary_response,omitempty"`
}

type listingRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Categories  []string       `json:"categories"`
	Condition   string         `json:"condition"`
	AllowTrade  bool           `json:"allow_trade"`
	Status      string         `json:"status"`
	Price       models.Money   `json:"price"`
	Images      []RequestImage `json:"images"`
}

func (r listingRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Description, validation.Length(0, 5000)),
		validation.Field(&r.Price, validation.Min(models.Money(0))),
		validation.Field(&r.Categories,
			validation.When(r.Status == string(models.ListingStatusActive),
				validation.Required.Error("pick at least one category"))),
		validation.Field(&r.Images,
			validation.When(r.Status == string(models.ListingStatusActive),
				validation.Required.Error("add at least one image"))),
	)
}

// normalize applies the defaults for fields the client may omit.
func (r *listingRequest) normalize() {
	if r.Status != string(models.ListingStatusActive) && r.Status != string(models.ListingStatusDraft) {
		r.Status = string(models.ListingStatusDraft)
	}
	if !validConditions[r.Condition] {
		r.Condition = "new"
	}
}

// ListingService exposes listing CRUD over HTTP.
type ListingService struct {
	store      *storage.Store
	jwtService *utils.JWTService
}

// NewListingService creates a ListingService.
func NewListingService(store *storage.Store, jwtService *utils.JWTService) *ListingService {
	return &ListingService{store: store, jwtService: jwtService}
}

// CreateListing creates a new listing with its images.
func (s *ListingService) CreateListing(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req listingRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	listing := &models.Listing{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Categories:  req.Categories,
		Condition:   req.Condition,
		AllowTrade:  req.AllowTrade,
		Status:      models.ListingStatus(req.Status),
		Price:       req.Price,
		Images:      buildImages(req.Images),
	}

	if err := s.store.CreateListing(c.Context(), listing); err != nil {
		return respond.Error(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"listing_id": listing.ID,
	})
}

// GetMyListings returns the current user's listings.
func (s *ListingService) GetMyListings(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	status := models.ListingStatus(c.Query("status"))
	if status != "" && status != models.ListingStatusActive && status != models.ListingStatusDraft &&
		status != models.ListingStatusReserved && status != models.ListingStatusTraded {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown listing status"})
	}

	limit := fiber.Query[int](c, "limit", defaultPageSize)
	offset := fiber.Query[int](c, "offset")

	listings, total, err := s.store.ListUserListings(c.Context(), userID, status, limit, offset)
	if err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"listings": listings,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetListing returns one listing. Drafts are visible to their owner only.
func (s *ListingService) GetListing(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	listing, err := s.store.GetListing(c.Context(), listingID)
	if err != nil {
		return respond.Error(c, err)
	}

	if listing.Status == models.ListingStatusDraft && listing.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You do not have access to this listing"})
	}

	owner, err := s.store.GetUser(c.Context(), listing.UserID)
	if err != nil {
		owner = nil
	}

	return c.JSON(fiber.Map{
		"listing":  listing,
		"user":     owner,
		"is_owner": listing.UserID == userID,
	})
}

// UpdateListing updates an existing listing owned by the current user.
func (s *ListingService) UpdateListing(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	var req listingRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.normalize()
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	current, err := s.store.GetListing(c.Context(), listingID)
	if err != nil {
		return respond.Error(c, err)
	}
	if current.UserID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You do not have access to this listing"})
	}
	// A listing locked by an open trade keeps its reserved status until the
	// trade closes.
	if current.Status == models.ListingStatusReserved {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Listing is reserved by an open trade"})
	}

	listing := &models.Listing{
		ID:          listingID,
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Categories:  req.Categories,
		Condition:   req.Condition,
		AllowTrade:  req.AllowTrade,
		Status:      models.ListingStatus(req.Status),
		Price:       req.Price,
	}

	if err := s.store.UpdateListing(c.Context(), listing); err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"listing_id": listingID,
	})
}

// DeleteListing soft deletes a listing owned by the current user.
func (s *ListingService) DeleteListing(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	listingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	if err := s.store.DeleteListing(c.Context(), listingID, userID); err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetPublicListings returns the public feed of active listings.
func (s *ListingService) GetPublicListings(c fiber.Ctx) error {
	limit := fiber.Query[int](c, "limit", defaultPageSize)
	offset := fiber.Query[int](c, "offset")

	listings, total, err := s.store.ListActiveListings(c.Context(), limit, offset)
	if err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{
		"listings": listings,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func buildImages(images []RequestImage) []models.ListingImage {
	out := make([]models.ListingImage, 0, len(images))
	for i, img := range images {
		item := models.ListingImage{
			ID:       uuid.New(),
			URL:      img.URL,
			PublicID: img.PublicID,
			FileName: img.FileName,
			IsMain:   i == 0,
			Position: i,
		}
		if len(img.CloudinaryResponse) > 0 {
			if resp, err := models.ParseCloudinaryResponse(string(img.CloudinaryResponse)); err == nil {
				item.PreviewURL = models.ExtractPreviewURL(resp)
				item.Metadata = models.ExtractMetadata(resp)
			}
		}
		out = append(out, item)
	}
	return out
}
