package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ListingStatus is the availability state of a listing.
type ListingStatus string

const (
	ListingStatusDraft ListingStatus = "draft"
	// ListingStatusActive means the listing is visible and may be targeted by
	// or offered in a trade.
	ListingStatusActive ListingStatus = "active"
	// ListingStatusReserved means the listing is locked by an open trade.
	ListingStatusReserved ListingStatus = "reserved"
	// ListingStatusTraded means the listing was given away in a completed trade.
	ListingStatusTraded  ListingStatus = "traded"
	ListingStatusDeleted ListingStatus = "deleted"
)

// Listing is an item a user put up for barter.
type Listing struct {
	ID          uuid.UUID     `json:"id"`
	UserID      uuid.UUID     `json:"user_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Categories  []string      `json:"categories"`
	Condition   string        `json:"condition"`
	AllowTrade  bool          `json:"allow_trade"`
	Status      ListingStatus `json:"status"`

	// Price is the owner-declared value in minor currency units. Zero means
	// "contact for pricing" and opts the listing out of fairness checks.
	Price Money `json:"price"`

	Images    []ListingImage `json:"images"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Available reports whether the listing can enter a new trade.
func (l *Listing) Available() bool {
	return l.Status == ListingStatusActive
}

// ListingImage is one image attached to a listing.
type ListingImage struct {
	ID         uuid.UUID     `json:"id"`
	ListingID  uuid.UUID     `json:"listing_id"`
	URL        string        `json:"url"`
	PreviewURL string        `json:"preview_url,omitempty"`
	PublicID   string        `json:"public_id"`
	FileName   string        `json:"file_name,omitempty"`
	IsMain     bool          `json:"is_main"`
	Position   int           `json:"position"`
	Metadata   ImageMetadata `json:"metadata,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ImageMetadata holds the key image metadata returned by Cloudinary.
type ImageMetadata struct {
	AssetID   string    `json:"asset_id"`
	PublicID  string    `json:"public_id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
	Bytes     int       `json:"bytes"`
}

// CloudinaryResponse is the upload response returned by the Cloudinary API.
type CloudinaryResponse struct {
	AssetID      string    `json:"asset_id"`
	PublicID     string    `json:"public_id"`
	Version      int       `json:"version"`
	Signature    string    `json:"signature"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Format       string    `json:"format"`
	ResourceType string    `json:"resource_type"`
	CreatedAt    time.Time `json:"created_at"`
	Bytes        int       `json:"bytes"`
	URL          string    `json:"url"`
	SecureURL    string    `json:"secure_url"`
	Eager        []Eager   `json:"eager"`
}

// Eager describes an image transformation produced by Cloudinary.
type Eager struct {
	Status    string `json:"status"`
	BatchID   string `json:"batch_id"`
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
}

// ExtractMetadata picks the persisted metadata out of a Cloudinary response.
func ExtractMetadata(cr CloudinaryResponse) ImageMetadata {
	return ImageMetadata{
		AssetID:   cr.AssetID,
		PublicID:  cr.PublicID,
		Width:     cr.Width,
		Height:    cr.Height,
		CreatedAt: cr.CreatedAt,
		Bytes:     cr.Bytes,
	}
}

// ExtractPreviewURL picks the preview URL out of a Cloudinary response.
func ExtractPreviewURL(cr CloudinaryResponse) string {
	for _, eager := range cr.Eager {
		if eager.Status == "processing" || eager.Status == "completed" {
			return eager.SecureURL
		}
	}
	return ""
}

// ParseCloudinaryResponse converts the raw Cloudinary JSON into a struct.
func ParseCloudinaryResponse(jsonData string) (CloudinaryResponse, error) {
	var response CloudinaryResponse
	err := json.Unmarshal([]byte(jsonData), &response)
	return response, err
}
