// Package guest folds anonymous pre-login activity into an authenticated
// account. The merge is idempotent by construction: running it twice with the
// same log leaves the account exactly as running it once would.
package guest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/swapdeck/swapdeck-api/internal/models"
)

// AccountStore is the persistence boundary of the reconciliation service.
type AccountStore interface {
	// UpsertFavorite inserts a favorite keyed by (account, listing); inserting
	// a pair that already exists is a no-op, not an error.
	UpsertFavorite(ctx context.Context, accountID, listingID uuid.UUID) error

	// MergePreferences applies the patch onto the account's preferences in a
	// single atomic update. Only keys present in the patch are written.
	MergePreferences(ctx context.Context, accountID uuid.UUID, patch map[string]interface{}) error

	// AppendSearchHistory prepends terms to the account's search history and
	// truncates it to the cap.
	AppendSearchHistory(ctx context.Context, accountID uuid.UUID, terms []string, cap int) error

	// AppendViewedListings prepends listing IDs to the account's viewed
	// history and truncates it to the cap.
	AppendViewedListings(ctx context.Context, accountID uuid.UUID, listingIDs []uuid.UUID, cap int) error
}

// Service reconciles guest activity logs into accounts.
type Service struct {
	store AccountStore
	now   func() time.Time
}

// NewService creates a reconciliation service.
func NewService(store AccountStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Reconcile merges the log into the account. A nil error means the merge is
// done and the client may clear its log; a non-nil error means the client must
// keep the log and retry on a later login. Safe to invoke concurrently for the
// same account: favorites are upserts and preferences are one atomic patch.
func (s *Service) Reconcile(ctx context.Context, accountID uuid.UUID, log *models.GuestActivityLog) error {
	if log == nil {
		return nil
	}
	if log.Expired(s.now()) {
		// Stale logs are discarded wholesale, content regardless.
		logrus.WithField("account_id", accountID).Info("guest log past retention window, discarded")
		return nil
	}

	log.Normalize()

	// Favorites are the part that must not be lost. Any failure here keeps the
	// whole log for a retry.
	for _, listingID := range log.Favorites {
		if err := s.store.UpsertFavorite(ctx, accountID, listingID); err != nil {
			return err
		}
	}

	if patch := preferencePatch(log.Preferences); len(patch) > 0 {
		if err := s.store.MergePreferences(ctx, accountID, patch); err != nil {
			return err
		}
	}

	// Histories are advisory; a failure is logged and never blocks the merge.
	if len(log.Searches) > 0 {
		if err := s.store.AppendSearchHistory(ctx, accountID, log.Searches, models.GuestLogMaxSearches); err != nil {
			logrus.WithField("account_id", accountID).WithError(err).Warn("search history merge failed")
		}
	}
	if len(log.Viewed) > 0 {
		if err := s.store.AppendViewedListings(ctx, accountID, log.Viewed, models.GuestLogMaxViewed); err != nil {
			logrus.WithField("account_id", accountID).WithError(err).Warn("viewed listings merge failed")
		}
	}

	return nil
}

// preferencePatch turns the populated preference fields into a patch.
// Absent fields stay out of the patch so they cannot overwrite account values.
func preferencePatch(p models.GuestPreferences) map[string]interface{} {
	patch := make(map[string]interface{})
	if p.Language != nil {
		patch["language"] = *p.Language
	}
	if p.Categories != nil {
		patch["categories"] = p.Categories
	}
	if p.TradeAlerts != nil {
		patch["trade_alerts"] = *p.TradeAlerts
	}
	if p.SearchRadius != nil {
		patch["search_radius"] = *p.SearchRadius
	}
	return patch
}
