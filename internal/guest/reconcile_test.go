package guest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapdeck/swapdeck-api/internal/models"
)

// fakeAccountStore implements AccountStore in memory with switchable failures.
type fakeAccountStore struct {
	favorites   map[uuid.UUID]bool
	preferences map[string]interface{}
	searches    []string
	viewed      []uuid.UUID

	failFavorites   bool
	failPreferences bool
	failSearches    bool
	failViewed      bool

	prefCalls int
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		favorites:   make(map[uuid.UUID]bool),
		preferences: make(map[string]interface{}),
	}
}

var errStore = errors.New("store down")

func (s *fakeAccountStore) UpsertFavorite(_ context.Context, _, listingID uuid.UUID) error {
	if s.failFavorites {
		return errStore
	}
	s.favorites[listingID] = true
	return nil
}

func (s *fakeAccountStore) MergePreferences(_ context.Context, _ uuid.UUID, patch map[string]interface{}) error {
	if s.failPreferences {
		return errStore
	}
	s.prefCalls++
	for k, v := range patch {
		s.preferences[k] = v
	}
	return nil
}

func (s *fakeAccountStore) AppendSearchHistory(_ context.Context, _ uuid.UUID, terms []string, limit int) error {
	if s.failSearches {
		return errStore
	}
	s.searches = append(terms, s.searches...)
	if len(s.searches) > limit {
		s.searches = s.searches[:limit]
	}
	return nil
}

func (s *fakeAccountStore) AppendViewedListings(_ context.Context, _ uuid.UUID, listingIDs []uuid.UUID, limit int) error {
	if s.failViewed {
		return errStore
	}
	s.viewed = append(listingIDs, s.viewed...)
	if len(s.viewed) > limit {
		s.viewed = s.viewed[:limit]
	}
	return nil
}

func testService(store AccountStore, now time.Time) *Service {
	s := NewService(store)
	s.now = func() time.Time { return now }
	return s
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("nil log is a no-op", func(t *testing.T) {
		store := newFakeAccountStore()
		svc := testService(store, now)

		require.NoError(t, svc.Reconcile(ctx, accountID, nil))
		assert.Empty(t, store.favorites)
	})

	t.Run("merges favorites preferences and histories", func(t *testing.T) {
		store := newFakeAccountStore()
		svc := testService(store, now)

		fav := uuid.New()
		viewed := uuid.New()
		lang := "de"
		alerts := true
		log := &models.GuestActivityLog{
			Favorites: []uuid.UUID{fav},
			Searches:  []string{"record player", "vinyl"},
			Viewed:    []uuid.UUID{viewed},
			Preferences: models.GuestPreferences{
				Language:    &lang,
				TradeAlerts: &alerts,
			},
			CreatedAt: now.Add(-time.Hour),
		}

		require.NoError(t, svc.Reconcile(ctx, accountID, log))

		assert.True(t, store.favorites[fav])
		assert.Equal(t, "de", store.preferences["language"])
		assert.Equal(t, true, store.preferences["trade_alerts"])
		assert.NotContains(t, store.preferences, "search_radius")
		assert.NotContains(t, store.preferences, "categories")
		assert.Equal(t, []string{"record player", "vinyl"}, store.searches)
		assert.Equal(t, []uuid.UUID{viewed}, store.viewed)
	})

	t.Run("idempotent when replayed", func(t *testing.T) {
		store := newFakeAccountStore()
		svc := testService(store, now)

		fav := uuid.New()
		makeLog := func() *models.GuestActivityLog {
			lang := "en"
			return &models.GuestActivityLog{
				Favorites:   []uuid.UUID{fav},
				Preferences: models.GuestPreferences{Language: &lang},
				CreatedAt:   now.Add(-time.Hour),
			}
		}

		require.NoError(t, svc.Reconcile(ctx, accountID, makeLog()))
		require.NoError(t, svc.Reconcile(ctx, accountID, makeLog()))

		assert.Len(t, store.favorites, 1)
		assert.Equal(t, "en", store.preferences["language"])
	})

	t.Run("expired log is discarded without error", func(t *testing.T) {
		store := newFakeAccountStore()
		svc := testService(store, now)

		log := &models.GuestActivityLog{
			Favorites: []uuid.UUID{uuid.New()},
			CreatedAt: now.Add(-models.GuestLogRetention - time.Hour),
		}

		require.NoError(t, svc.Reconcile(ctx, accountID, log))
		assert.Empty(t, store.favorites)
	})

	t.Run("favorite failure is returned so the client retries", func(t *testing.T) {
		store := newFakeAccountStore()
		store.failFavorites = true
		svc := testService(store, now)

		log := &models.GuestActivityLog{
			Favorites: []uuid.UUID{uuid.New()},
			CreatedAt: now.Add(-time.Hour),
		}
		assert.Error(t, svc.Reconcile(ctx, accountID, log))
	})

	t.Run("preference failure is returned", func(t *testing.T) {
		store := newFakeAccountStore()
		store.failPreferences = true
		svc := testService(store, now)

		lang := "fr"
		log := &models.GuestActivityLog{
			Preferences: models.GuestPreferences{Language: &lang},
			CreatedAt:   now.Add(-time.Hour),
		}
		assert.Error(t, svc.Reconcile(ctx, accountID, log))
	})

	t.Run("history failures do not block the merge", func(t *testing.T) {
		store := newFakeAccountStore()
		store.failSearches = true
		store.failViewed = true
		svc := testService(store, now)

		fav := uuid.New()
		log := &models.GuestActivityLog{
			Favorites: []uuid.UUID{fav},
			Searches:  []string{"boots"},
			Viewed:    []uuid.UUID{uuid.New()},
			CreatedAt: now.Add(-time.Hour),
		}

		require.NoError(t, svc.Reconcile(ctx, accountID, log))
		assert.True(t, store.favorites[fav])
	})

	t.Run("empty preferences skip the patch entirely", func(t *testing.T) {
		store := newFakeAccountStore()
		svc := testService(store, now)

		log := &models.GuestActivityLog{
			Favorites: []uuid.UUID{uuid.New()},
			CreatedAt: now.Add(-time.Hour),
		}
		require.NoError(t, svc.Reconcile(ctx, accountID, log))
		assert.Equal(t, 0, store.prefCalls)
	})

	t.Run("log collections are capped and deduped", func(t *testing.T) {
		store := newFakeAccountStore()
		svc := testService(store, now)

		searches := make([]string, 0, models.GuestLogMaxSearches+5)
		for i := 0; i < models.GuestLogMaxSearches+5; i++ {
			searches = append(searches, string(rune('a'+i)))
		}
		dup := uuid.New()
		log := &models.GuestActivityLog{
			Favorites: []uuid.UUID{dup, dup},
			Searches:  searches,
			CreatedAt: now.Add(-time.Hour),
		}

		require.NoError(t, svc.Reconcile(ctx, accountID, log))
		assert.Len(t, store.favorites, 1)
		assert.Len(t, store.searches, models.GuestLogMaxSearches)
	})
}
