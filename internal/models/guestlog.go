package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// GuestLogMaxSearches caps the search history carried by a guest log.
	GuestLogMaxSearches = 10
	// GuestLogMaxViewed caps the viewed-listings history carried by a guest log.
	GuestLogMaxViewed = 50
	// GuestLogRetention is how long a guest log stays eligible for
	// reconciliation. Older logs are discarded wholesale.
	GuestLogRetention = 30 * 24 * time.Hour
)

// GuestPreferences carries the preference fields a guest may have set before
// logging in. Nil fields were never set and must not overwrite account values.
type GuestPreferences struct {
	Language     *string  `json:"language,omitempty"`
	Categories   []string `json:"categories,omitempty"`
	TradeAlerts  *bool    `json:"trade_alerts,omitempty"`
	SearchRadius *int     `json:"search_radius,omitempty"`
}

// Empty reports whether no preference field is populated.
func (p GuestPreferences) Empty() bool {
	return p.Language == nil && p.Categories == nil && p.TradeAlerts == nil && p.SearchRadius == nil
}

// GuestActivityLog is the client-held record of anonymous activity, submitted
// once at login to be folded into the account.
type GuestActivityLog struct {
	Favorites   []uuid.UUID      `json:"favorites,omitempty"`
	Searches    []string         `json:"searches,omitempty"`
	Viewed      []uuid.UUID      `json:"viewed,omitempty"`
	Preferences GuestPreferences `json:"preferences,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Expired reports whether the log is past its retention window.
func (l *GuestActivityLog) Expired(now time.Time) bool {
	return now.Sub(l.CreatedAt) > GuestLogRetention
}

// Normalize de-duplicates the collections and enforces the client-side caps,
// keeping most-recent-first order. Untrusted input gets the same bounds the
// client was supposed to apply.
func (l *GuestActivityLog) Normalize() {
	l.Favorites = dedupeIDs(l.Favorites, len(l.Favorites))
	l.Viewed = dedupeIDs(l.Viewed, GuestLogMaxViewed)

	seen := make(map[string]struct{}, len(l.Searches))
	searches := make([]string, 0, len(l.Searches))
	for _, s := range l.Searches {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		searches = append(searches, s)
		if len(searches) == GuestLogMaxSearches {
			break
		}
	}
	l.Searches = searches
}

func dedupeIDs(ids []uuid.UUID, limit int) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out
}
