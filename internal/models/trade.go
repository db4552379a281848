package models

import (
	"time"

	"github.com/google/uuid"
)

// TradeStatus is the lifecycle state of a trade. Statuses only change through
// the lifecycle manager; the transition table below is the single source of
// truth for what moves are legal.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusAccepted  TradeStatus = "accepted"
	TradeStatusRejected  TradeStatus = "rejected"
	TradeStatusCancelled TradeStatus = "cancelled"
	TradeStatusExpired   TradeStatus = "expired"
	TradeStatusCompleted TradeStatus = "completed"
)

// tradeTransitions maps each status to the statuses reachable from it.
// Terminal statuses have no entry.
var tradeTransitions = map[TradeStatus][]TradeStatus{
	TradeStatusPending:  {TradeStatusAccepted, TradeStatusRejected, TradeStatusCancelled, TradeStatusExpired},
	TradeStatusAccepted: {TradeStatusCompleted, TradeStatusCancelled},
}

// Valid reports whether s is one of the known statuses.
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeStatusPending, TradeStatusAccepted, TradeStatusRejected,
		TradeStatusCancelled, TradeStatusExpired, TradeStatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether s allows no further transitions.
func (s TradeStatus) Terminal() bool {
	return len(tradeTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is legal.
func (s TradeStatus) CanTransitionTo(next TradeStatus) bool {
	for _, allowed := range tradeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Trade is a proposal by one party to exchange a bundle of value for another
// party's listing, tracked from creation to a terminal status.
type Trade struct {
	ID              uuid.UUID   `json:"id"`
	ProposerID      uuid.UUID   `json:"proposer_id"`
	ReceiverID      uuid.UUID   `json:"receiver_id"`
	TargetListingID uuid.UUID   `json:"target_listing_id"`
	ProposerOffer   TradeOffer  `json:"proposer_offer"`
	Status          TradeStatus `json:"status"`

	// EstimatedValue is frozen at proposal time. It is a snapshot and is never
	// recomputed when referenced listings change price.
	EstimatedValue Money `json:"estimated_value"`

	Message         string     `json:"message,omitempty"`
	MeetingLocation *string    `json:"meeting_location,omitempty"`
	MeetingTime     *time.Time `json:"meeting_time,omitempty"`

	// CompletionCode is the shared secret generated on acceptance. It is only
	// returned to the two participants, never in list payloads.
	CompletionCode string `json:"-"`

	RejectionReason *string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	// Populated by list queries for the API, not persisted on the trade row.
	TargetListing *Listing `json:"target_listing,omitempty"`
	Proposer      *User    `json:"proposer,omitempty"`
	Receiver      *User    `json:"receiver,omitempty"`
}

// Participant reports whether userID is one of the two trade parties.
func (t *Trade) Participant(userID uuid.UUID) bool {
	return t.ProposerID == userID || t.ReceiverID == userID
}
