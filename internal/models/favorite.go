package models

import (
	"time"

	"github.com/google/uuid"
)

// Favorite marks a listing as favorited by a user. Uniqueness is on
// (user_id, listing_id); inserting the same pair twice is a no-op.
type Favorite struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ListingID uuid.UUID `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`

	Listing *Listing `json:"listing,omitempty"`
}
