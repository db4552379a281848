package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Money is a monetary amount in minor currency units.
type Money int64

// LineKind identifies the concrete type of an offer line.
type LineKind string

const (
	LineKindListing LineKind = "listing"
	LineKindCash    LineKind = "cash"
	LineKindService LineKind = "service"
)

// OfferLine is one line of a trade offer. The set of implementations is
// closed: ListingLine, CashLine and ServiceLine.
type OfferLine interface {
	Kind() LineKind
}

// ListingLine references a listing owned by the offering party.
type ListingLine struct {
	ListingID     uuid.UUID `json:"listing_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	DeclaredValue Money     `json:"declared_value"`
}

// Kind implements OfferLine.
func (ListingLine) Kind() LineKind { return LineKindListing }

// CashLine is a cash top-up in minor currency units.
type CashLine struct {
	Amount Money `json:"amount"`
}

// Kind implements OfferLine.
func (CashLine) Kind() LineKind { return LineKindCash }

// ServiceLine is a pledge of service hours ("I'll assemble your furniture").
type ServiceLine struct {
	Description string          `json:"description"`
	Hours       decimal.Decimal `json:"hours"`
}

// Kind implements OfferLine.
func (ServiceLine) Kind() LineKind { return LineKindService }

// TradeOffer is an immutable bundle of offer lines owned by one party.
// It is produced by the offer composer and never modified afterwards.
type TradeOffer struct {
	Lines []OfferLine `json:"lines"`
}

// offerLineEnvelope is the persisted form of a single offer line. The "type"
// discriminator keeps the jsonb column readable and addressable in SQL.
type offerLineEnvelope struct {
	Type          LineKind         `json:"type"`
	ListingID     *uuid.UUID       `json:"listing_id,omitempty"`
	OwnerID       *uuid.UUID       `json:"owner_id,omitempty"`
	DeclaredValue *Money           `json:"declared_value,omitempty"`
	Amount        *Money           `json:"amount,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Hours         *decimal.Decimal `json:"hours,omitempty"`
}

// MarshalJSON encodes the offer as an array of type-tagged line objects.
func (o TradeOffer) MarshalJSON() ([]byte, error) {
	envelopes := make([]offerLineEnvelope, 0, len(o.Lines))
	for _, line := range o.Lines {
		switch l := line.(type) {
		case ListingLine:
			envelopes = append(envelopes, offerLineEnvelope{
				Type:          LineKindListing,
				ListingID:     &l.ListingID,
				OwnerID:       &l.OwnerID,
				DeclaredValue: &l.DeclaredValue,
			})
		case CashLine:
			envelopes = append(envelopes, offerLineEnvelope{
				Type:   LineKindCash,
				Amount: &l.Amount,
			})
		case ServiceLine:
			envelopes = append(envelopes, offerLineEnvelope{
				Type:        LineKindService,
				Description: &l.Description,
				Hours:       &l.Hours,
			})
		default:
			return nil, fmt.Errorf("unknown offer line kind %q", line.Kind())
		}
	}
	return json.Marshal(envelopes)
}

// UnmarshalJSON decodes an array of type-tagged line objects.
func (o *TradeOffer) UnmarshalJSON(data []byte) error {
	var envelopes []offerLineEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return err
	}

	lines := make([]OfferLine, 0, len(envelopes))
	for _, e := range envelopes {
		switch e.Type {
		case LineKindListing:
			if e.ListingID == nil || e.OwnerID == nil || e.DeclaredValue == nil {
				return fmt.Errorf("listing line is missing fields")
			}
			lines = append(lines, ListingLine{
				ListingID:     *e.ListingID,
				OwnerID:       *e.OwnerID,
				DeclaredValue: *e.DeclaredValue,
			})
		case LineKindCash:
			if e.Amount == nil {
				return fmt.Errorf("cash line is missing amount")
			}
			lines = append(lines, CashLine{Amount: *e.Amount})
		case LineKindService:
			if e.Description == nil || e.Hours == nil {
				return fmt.Errorf("service line is missing fields")
			}
			lines = append(lines, ServiceLine{Description: *e.Description, Hours: *e.Hours})
		default:
			return fmt.Errorf("unknown offer line type %q", e.Type)
		}
	}

	o.Lines = lines
	return nil
}

// ListingIDs returns the IDs of all listings referenced by the offer.
func (o TradeOffer) ListingIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, line := range o.Lines {
		if l, ok := line.(ListingLine); ok {
			ids = append(ids, l.ListingID)
		}
	}
	return ids
}
