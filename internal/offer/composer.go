// Package offer builds and validates trade offers before they reach the
// valuation engine or storage. It is pure in-memory staging and performs no I/O.
package offer

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/swapdeck/swapdeck-api/internal/apperror"
	"github.com/swapdeck/swapdeck-api/internal/models"
)

const (
	// DefaultCashCeiling bounds a single cash line (abuse guard), in minor
	// currency units.
	DefaultCashCeiling models.Money = 100_000_000
	// MaxServiceDescriptionLen bounds the free-text service description.
	MaxServiceDescriptionLen = 500
	// MaxServiceHours bounds a single service pledge.
	MaxServiceHours = 1000
)

// Limits configures the composer's validation bounds.
type Limits struct {
	CashCeiling       models.Money
	MaxDescriptionLen int
	MaxHours          int64
}

// DefaultLimits returns the production validation bounds.
func DefaultLimits() Limits {
	return Limits{
		CashCeiling:       DefaultCashCeiling,
		MaxDescriptionLen: MaxServiceDescriptionLen,
		MaxHours:          MaxServiceHours,
	}
}

// Composer accumulates offer lines for a single offering party and validates
// each line as it is added. Finalize returns the immutable offer.
type Composer struct {
	ownerID uuid.UUID
	limits  Limits
	lines   []models.OfferLine
}

// NewComposer creates a composer for the given offering party.
func NewComposer(ownerID uuid.UUID, limits Limits) *Composer {
	return &Composer{ownerID: ownerID, limits: limits}
}

// AddListingLine stages a listing the offering party wants to put up.
// The declared value is checked against the authoritative listing record later,
// at proposal time; here only ownership and duplication are enforced.
func (c *Composer) AddListingLine(listingID, ownerID uuid.UUID, declaredValue models.Money) error {
	if listingID == uuid.Nil {
		return apperror.New(apperror.CodeInvalidInput, "listing id is required")
	}
	if ownerID != c.ownerID {
		return apperror.Newf(apperror.CodeOwnership, "listing %s does not belong to the offering party", listingID)
	}
	for _, line := range c.lines {
		if l, ok := line.(models.ListingLine); ok && l.ListingID == listingID {
			return apperror.Newf(apperror.CodeDuplicateLine, "listing %s is already in the offer", listingID)
		}
	}
	if declaredValue < 0 {
		return apperror.New(apperror.CodeInvalidAmount, "declared value cannot be negative")
	}

	c.lines = append(c.lines, models.ListingLine{
		ListingID:     listingID,
		OwnerID:       ownerID,
		DeclaredValue: declaredValue,
	})
	return nil
}

// AddCashLine stages a cash top-up in minor currency units.
func (c *Composer) AddCashLine(amount models.Money) error {
	if amount < 0 {
		return apperror.New(apperror.CodeInvalidAmount, "cash amount cannot be negative")
	}
	if amount > c.limits.CashCeiling {
		return apperror.Newf(apperror.CodeInvalidAmount, "cash amount exceeds the ceiling of %d", c.limits.CashCeiling)
	}

	c.lines = append(c.lines, models.CashLine{Amount: amount})
	return nil
}

// AddServiceLine stages a pledge of service hours.
func (c *Composer) AddServiceLine(description string, hours decimal.Decimal) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return apperror.New(apperror.CodeInvalidService, "service description is required")
	}
	if len(description) > c.limits.MaxDescriptionLen {
		return apperror.Newf(apperror.CodeInvalidService, "service description exceeds %d characters", c.limits.MaxDescriptionLen)
	}
	if !hours.IsPositive() {
		return apperror.New(apperror.CodeInvalidService, "service hours must be positive")
	}
	if hours.GreaterThan(decimal.NewFromInt(c.limits.MaxHours)) {
		return apperror.Newf(apperror.CodeInvalidService, "service hours exceed the limit of %d", c.limits.MaxHours)
	}

	c.lines = append(c.lines, models.ServiceLine{Description: description, Hours: hours})
	return nil
}

// RemoveLine drops the line at the given index.
func (c *Composer) RemoveLine(index int) error {
	if index < 0 || index >= len(c.lines) {
		return apperror.Newf(apperror.CodeIndexOutOfRange, "no offer line at index %d", index)
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// Len returns the number of staged lines.
func (c *Composer) Len() int { return len(c.lines) }

// Finalize returns the composed offer. The returned value holds its own copy
// of the lines; further composer mutations do not leak into it.
func (c *Composer) Finalize() (models.TradeOffer, error) {
	if len(c.lines) == 0 {
		return models.TradeOffer{}, apperror.New(apperror.CodeEmptyOffer, "an offer needs at least one line")
	}

	lines := make([]models.OfferLine, len(c.lines))
	copy(lines, c.lines)
	return models.TradeOffer{Lines: lines}, nil
}
