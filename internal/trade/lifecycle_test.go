package trade

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapdeck/swapdeck-api/internal/apperror"
	"github.com/swapdeck/swapdeck-api/internal/models"
	"github.com/swapdeck/swapdeck-api/internal/notifier"
	"github.com/swapdeck/swapdeck-api/internal/valuation"
)

// memStore is an in-memory Store with transactional rollback, so lifecycle
// logic can be exercised without postgres.
type memStore struct {
	mu       sync.Mutex
	listings map[uuid.UUID]models.Listing
	trades   map[uuid.UUID]models.Trade
}

func newMemStore() *memStore {
	return &memStore{
		listings: make(map[uuid.UUID]models.Listing),
		trades:   make(map[uuid.UUID]models.Trade),
	}
}

func (s *memStore) addListing(l models.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ID] = l
}

func (s *memStore) listing(id uuid.UUID) models.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listings[id]
}

func (s *memStore) tradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

func (s *memStore) ExecTx(_ context.Context, fn func(tx TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapListings := make(map[uuid.UUID]models.Listing, len(s.listings))
	for k, v := range s.listings {
		snapListings[k] = v
	}
	snapTrades := make(map[uuid.UUID]models.Trade, len(s.trades))
	for k, v := range s.trades {
		snapTrades[k] = v
	}

	if err := fn(&memTx{s: s}); err != nil {
		s.listings = snapListings
		s.trades = snapTrades
		return err
	}
	return nil
}

func (s *memStore) GetTrade(_ context.Context, id uuid.UUID) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return nil, apperror.Newf(apperror.CodeNotFound, "trade %s not found", id)
	}
	return &t, nil
}

func (s *memStore) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []models.Trade
	for _, t := range s.trades {
		if t.Status == models.TradeStatusPending && !t.CreatedAt.After(cutoff) {
			stale = append(stale, t)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })

	ids := make([]uuid.UUID, 0, len(stale))
	for _, t := range stale {
		if len(ids) == limit {
			break
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}

type memTx struct {
	s *memStore
}

func (tx *memTx) GetListingForUpdate(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	l, ok := tx.s.listings[id]
	if !ok {
		return nil, apperror.Newf(apperror.CodeNotFound, "listing %s not found", id)
	}
	return &l, nil
}

func (tx *memTx) SetListingStatus(_ context.Context, id uuid.UUID, status models.ListingStatus) error {
	l, ok := tx.s.listings[id]
	if !ok {
		return apperror.Newf(apperror.CodeNotFound, "listing %s not found", id)
	}
	l.Status = status
	tx.s.listings[id] = l
	return nil
}

func (tx *memTx) InsertTrade(_ context.Context, t *models.Trade) error {
	tx.s.trades[t.ID] = *t
	return nil
}

func (tx *memTx) GetTradeForUpdate(_ context.Context, id uuid.UUID) (*models.Trade, error) {
	t, ok := tx.s.trades[id]
	if !ok {
		return nil, apperror.Newf(apperror.CodeNotFound, "trade %s not found", id)
	}
	return &t, nil
}

func (tx *memTx) UpdateTrade(_ context.Context, t *models.Trade) error {
	if _, ok := tx.s.trades[t.ID]; !ok {
		return apperror.Newf(apperror.CodeNotFound, "trade %s not found", t.ID)
	}
	tx.s.trades[t.ID] = *t
	return nil
}

// spyNotifier records delivered events.
type spyNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (n *spyNotifier) Notify(_ context.Context, event notifier.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *spyNotifier) last(t *testing.T) notifier.Event {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.events)
	return n.events[len(n.events)-1]
}

type fixture struct {
	store    *memStore
	events   *spyNotifier
	manager  *Manager
	proposer uuid.UUID
	receiver uuid.UUID
	target   models.Listing
	offered  models.Listing
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newMemStore(),
		events:   &spyNotifier{},
		proposer: uuid.New(),
		receiver: uuid.New(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	f.target = models.Listing{
		ID:         uuid.New(),
		UserID:     f.receiver,
		Title:      "vintage record player",
		Status:     models.ListingStatusActive,
		AllowTrade: true,
		Price:      10000,
	}
	f.offered = models.Listing{
		ID:         uuid.New(),
		UserID:     f.proposer,
		Title:      "box of vinyl records",
		Status:     models.ListingStatusActive,
		AllowTrade: true,
		Price:      8000,
	}
	f.store.addListing(f.target)
	f.store.addListing(f.offered)

	f.manager = NewManager(f.store, valuation.NewDefaultEngine(), f.events, DefaultPendingTTL)
	f.manager.now = func() time.Time { return f.now }
	f.manager.genCode = func() string { return "ABC234" }
	return f
}

func (f *fixture) proposeParams() ProposeParams {
	return ProposeParams{
		ProposerID:      f.proposer,
		ReceiverID:      f.receiver,
		TargetListingID: f.target.ID,
		Offer: models.TradeOffer{Lines: []models.OfferLine{
			models.ListingLine{ListingID: f.offered.ID, OwnerID: f.proposer, DeclaredValue: 8000},
			models.CashLine{Amount: 2000},
		}},
		Message: "deal?",
	}
}

func (f *fixture) propose(t *testing.T) *models.Trade {
	t.Helper()
	result, err := f.manager.Propose(context.Background(), f.proposeParams())
	require.NoError(t, err)
	return result.Trade
}

func TestPropose(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path reserves listings and freezes value", func(t *testing.T) {
		f := newFixture(t)

		result, err := f.manager.Propose(ctx, f.proposeParams())
		require.NoError(t, err)

		assert.Equal(t, models.TradeStatusPending, result.Trade.Status)
		assert.Equal(t, models.Money(10000), result.Trade.EstimatedValue)
		assert.Equal(t, valuation.VerdictFair, result.Verdict)

		assert.Equal(t, models.ListingStatusReserved, f.store.listing(f.target.ID).Status)
		assert.Equal(t, models.ListingStatusReserved, f.store.listing(f.offered.ID).Status)

		event := f.events.last(t)
		assert.Equal(t, notifier.EventTradeProposed, event.Type)
		assert.Equal(t, f.receiver, event.RecipientID)
	})

	t.Run("self trade rejected", func(t *testing.T) {
		f := newFixture(t)
		params := f.proposeParams()
		params.ReceiverID = f.proposer

		_, err := f.manager.Propose(ctx, params)
		assert.True(t, apperror.Is(err, apperror.CodeSelfTrade))
	})

	t.Run("empty offer rejected", func(t *testing.T) {
		f := newFixture(t)
		params := f.proposeParams()
		params.Offer = models.TradeOffer{}

		_, err := f.manager.Propose(ctx, params)
		assert.True(t, apperror.Is(err, apperror.CodeEmptyOffer))
		assert.Equal(t, 0, f.store.tradeCount())
	})

	t.Run("receiver must own the target", func(t *testing.T) {
		f := newFixture(t)
		params := f.proposeParams()
		params.ReceiverID = uuid.New()

		_, err := f.manager.Propose(ctx, params)
		assert.True(t, apperror.Is(err, apperror.CodeOwnership))
	})

	t.Run("reserved target rejected and nothing sticks", func(t *testing.T) {
		f := newFixture(t)
		f.target.Status = models.ListingStatusReserved
		f.store.addListing(f.target)

		_, err := f.manager.Propose(ctx, f.proposeParams())
		assert.True(t, apperror.Is(err, apperror.CodeListingUnavailable))
		// the offered listing was not reserved by the failed attempt
		assert.Equal(t, models.ListingStatusActive, f.store.listing(f.offered.ID).Status)
	})

	t.Run("target with trades disabled rejected", func(t *testing.T) {
		f := newFixture(t)
		f.target.AllowTrade = false
		f.store.addListing(f.target)

		_, err := f.manager.Propose(ctx, f.proposeParams())
		assert.True(t, apperror.Is(err, apperror.CodeListingUnavailable))
	})

	t.Run("declared value must match the listing record", func(t *testing.T) {
		f := newFixture(t)
		params := f.proposeParams()
		params.Offer.Lines[0] = models.ListingLine{ListingID: f.offered.ID, OwnerID: f.proposer, DeclaredValue: 99999}

		_, err := f.manager.Propose(ctx, params)
		assert.True(t, apperror.Is(err, apperror.CodeInvalidAmount))
	})

	t.Run("offered listing must belong to the proposer", func(t *testing.T) {
		f := newFixture(t)
		foreign := models.Listing{ID: uuid.New(), UserID: uuid.New(), Status: models.ListingStatusActive, Price: 100}
		f.store.addListing(foreign)

		params := f.proposeParams()
		params.Offer.Lines[0] = models.ListingLine{ListingID: foreign.ID, OwnerID: f.proposer, DeclaredValue: 100}

		_, err := f.manager.Propose(ctx, params)
		assert.True(t, apperror.Is(err, apperror.CodeOwnership))
	})

	t.Run("second proposal against the same target loses", func(t *testing.T) {
		f := newFixture(t)
		f.propose(t)

		rival := uuid.New()
		params := ProposeParams{
			ProposerID:      rival,
			ReceiverID:      f.receiver,
			TargetListingID: f.target.ID,
			Offer:           models.TradeOffer{Lines: []models.OfferLine{models.CashLine{Amount: 9000}}},
		}
		_, err := f.manager.Propose(ctx, params)
		assert.True(t, apperror.Is(err, apperror.CodeListingUnavailable))
	})

	t.Run("concurrent proposals leave exactly one winner", func(t *testing.T) {
		// Two rival proposers race for the same target over many rounds.
		// Each round exactly one must win and the other must see the
		// target as unavailable.
		for round := 0; round < 50; round++ {
			f := newFixture(t)
			rival := uuid.New()

			params := []ProposeParams{
				{
					ProposerID:      f.proposer,
					ReceiverID:      f.receiver,
					TargetListingID: f.target.ID,
					Offer:           models.TradeOffer{Lines: []models.OfferLine{models.CashLine{Amount: 10000}}},
				},
				{
					ProposerID:      rival,
					ReceiverID:      f.receiver,
					TargetListingID: f.target.ID,
					Offer:           models.TradeOffer{Lines: []models.OfferLine{models.CashLine{Amount: 9000}}},
				},
			}

			errs := make([]error, len(params))
			var wg sync.WaitGroup
			for i, p := range params {
				wg.Add(1)
				go func(i int, p ProposeParams) {
					defer wg.Done()
					_, errs[i] = f.manager.Propose(ctx, p)
				}(i, p)
			}
			wg.Wait()

			var won, lost int
			for _, err := range errs {
				if err == nil {
					won++
					continue
				}
				require.True(t, apperror.Is(err, apperror.CodeListingUnavailable))
				lost++
			}
			require.Equal(t, 1, won)
			require.Equal(t, 1, lost)
			assert.Equal(t, models.ListingStatusReserved, f.store.listing(f.target.ID).Status)
			assert.Equal(t, 1, f.store.tradeCount())
		}
	})

	t.Run("service hours feed the estimate", func(t *testing.T) {
		f := newFixture(t)
		params := f.proposeParams()
		params.Offer = models.TradeOffer{Lines: []models.OfferLine{
			models.ServiceLine{Description: "bike repair", Hours: decimal.NewFromInt(4)},
		}}

		result, err := f.manager.Propose(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, models.Money(6000), result.Trade.EstimatedValue)
		assert.Equal(t, valuation.VerdictUnfair, result.Verdict)
	})
}

func TestAccept(t *testing.T) {
	ctx := context.Background()

	t.Run("receiver accepts and gets a code", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		location := "central station"
		when := f.now.Add(48 * time.Hour)
		accepted, err := f.manager.Accept(ctx, created.ID, f.receiver, &location, &when)
		require.NoError(t, err)

		assert.Equal(t, models.TradeStatusAccepted, accepted.Status)
		assert.Equal(t, "ABC234", accepted.CompletionCode)
		assert.Equal(t, &location, accepted.MeetingLocation)

		event := f.events.last(t)
		assert.Equal(t, notifier.EventTradeAccepted, event.Type)
		assert.Equal(t, f.proposer, event.RecipientID)
	})

	t.Run("proposer cannot accept", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		_, err := f.manager.Accept(ctx, created.ID, f.proposer, nil, nil)
		assert.True(t, apperror.Is(err, apperror.CodeNotAuthorized))
	})

	t.Run("only pending trades accept", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)
		_, err := f.manager.Accept(ctx, created.ID, f.receiver, nil, nil)
		require.NoError(t, err)

		_, err = f.manager.Accept(ctx, created.ID, f.receiver, nil, nil)
		assert.True(t, apperror.Is(err, apperror.CodeInvalidState))
	})
}

func TestReject(t *testing.T) {
	ctx := context.Background()

	t.Run("receiver rejects with a reason and listings free up", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		rejected, err := f.manager.Reject(ctx, created.ID, f.receiver, "not interested")
		require.NoError(t, err)

		assert.Equal(t, models.TradeStatusRejected, rejected.Status)
		require.NotNil(t, rejected.RejectionReason)
		assert.Equal(t, "not interested", *rejected.RejectionReason)

		assert.Equal(t, models.ListingStatusActive, f.store.listing(f.target.ID).Status)
		assert.Equal(t, models.ListingStatusActive, f.store.listing(f.offered.ID).Status)

		assert.Equal(t, notifier.EventTradeRejected, f.events.last(t).Type)
	})

	t.Run("reason is required", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		_, err := f.manager.Reject(ctx, created.ID, f.receiver, "  ")
		assert.True(t, apperror.Is(err, apperror.CodeInvalidInput))
	})

	t.Run("proposer cannot reject", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		_, err := f.manager.Reject(ctx, created.ID, f.proposer, "changed my mind")
		assert.True(t, apperror.Is(err, apperror.CodeNotAuthorized))
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("proposer cancels a pending trade", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		cancelled, err := f.manager.Cancel(ctx, created.ID, f.proposer)
		require.NoError(t, err)
		assert.Equal(t, models.TradeStatusCancelled, cancelled.Status)
		assert.Equal(t, models.ListingStatusActive, f.store.listing(f.target.ID).Status)

		event := f.events.last(t)
		assert.Equal(t, notifier.EventTradeCancelled, event.Type)
		assert.Equal(t, f.receiver, event.RecipientID)
	})

	t.Run("receiver cannot cancel a pending trade", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		_, err := f.manager.Cancel(ctx, created.ID, f.receiver)
		assert.True(t, apperror.Is(err, apperror.CodeNotAuthorized))
	})

	t.Run("either party cancels an accepted trade", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)
		_, err := f.manager.Accept(ctx, created.ID, f.receiver, nil, nil)
		require.NoError(t, err)

		cancelled, err := f.manager.Cancel(ctx, created.ID, f.receiver)
		require.NoError(t, err)
		assert.Equal(t, models.TradeStatusCancelled, cancelled.Status)
		assert.Equal(t, f.proposer, f.events.last(t).RecipientID)
	})

	t.Run("outsiders cannot cancel", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		_, err := f.manager.Cancel(ctx, created.ID, uuid.New())
		assert.True(t, apperror.Is(err, apperror.CodeNotAuthorized))
	})

	t.Run("terminal trades cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)
		_, err := f.manager.Reject(ctx, created.ID, f.receiver, "no")
		require.NoError(t, err)

		_, err = f.manager.Cancel(ctx, created.ID, f.proposer)
		assert.True(t, apperror.Is(err, apperror.CodeInvalidState))
	})
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	accept := func(t *testing.T, f *fixture) *models.Trade {
		t.Helper()
		created := f.propose(t)
		accepted, err := f.manager.Accept(ctx, created.ID, f.receiver, nil, nil)
		require.NoError(t, err)
		return accepted
	}

	t.Run("matching code completes and marks listings traded", func(t *testing.T) {
		f := newFixture(t)
		accepted := accept(t, f)

		completed, err := f.manager.Complete(ctx, accepted.ID, f.proposer, "ABC234")
		require.NoError(t, err)

		assert.Equal(t, models.TradeStatusCompleted, completed.Status)
		require.NotNil(t, completed.CompletedAt)
		assert.Equal(t, f.now, *completed.CompletedAt)

		assert.Equal(t, models.ListingStatusTraded, f.store.listing(f.target.ID).Status)
		assert.Equal(t, models.ListingStatusTraded, f.store.listing(f.offered.ID).Status)

		event := f.events.last(t)
		assert.Equal(t, notifier.EventTradeCompleted, event.Type)
		assert.Equal(t, f.receiver, event.RecipientID)
	})

	t.Run("code match ignores case and whitespace", func(t *testing.T) {
		f := newFixture(t)
		accepted := accept(t, f)

		_, err := f.manager.Complete(ctx, accepted.ID, f.receiver, "  abc234  ")
		assert.NoError(t, err)
	})

	t.Run("wrong code rejected", func(t *testing.T) {
		f := newFixture(t)
		accepted := accept(t, f)

		_, err := f.manager.Complete(ctx, accepted.ID, f.proposer, "WRONG1")
		assert.True(t, apperror.Is(err, apperror.CodeInvalidCode))

		got, err := f.store.GetTrade(ctx, accepted.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TradeStatusAccepted, got.Status)
	})

	t.Run("completed trades cannot complete again", func(t *testing.T) {
		f := newFixture(t)
		accepted := accept(t, f)

		completed, err := f.manager.Complete(ctx, accepted.ID, f.proposer, "ABC234")
		require.NoError(t, err)
		require.NotNil(t, completed.CompletedAt)
		firstStamp := *completed.CompletedAt

		f.now = f.now.Add(time.Hour)
		_, err = f.manager.Complete(ctx, accepted.ID, f.receiver, "ABC234")
		assert.True(t, apperror.Is(err, apperror.CodeInvalidState))

		got, err := f.store.GetTrade(ctx, accepted.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TradeStatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, firstStamp, *got.CompletedAt)
	})

	t.Run("pending trades cannot complete", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		_, err := f.manager.Complete(ctx, created.ID, f.proposer, "ABC234")
		assert.True(t, apperror.Is(err, apperror.CodeInvalidState))
	})

	t.Run("outsiders cannot complete", func(t *testing.T) {
		f := newFixture(t)
		accepted := accept(t, f)

		_, err := f.manager.Complete(ctx, accepted.ID, uuid.New(), "ABC234")
		assert.True(t, apperror.Is(err, apperror.CodeNotAuthorized))
	})
}

func TestExpireStale(t *testing.T) {
	ctx := context.Background()

	t.Run("expires old pending trades and releases listings", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		later := f.now.Add(DefaultPendingTTL + time.Hour)
		expired, err := f.manager.ExpireStale(ctx, later)
		require.NoError(t, err)
		assert.Equal(t, 1, expired)

		got, err := f.store.GetTrade(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TradeStatusExpired, got.Status)
		assert.Equal(t, models.ListingStatusActive, f.store.listing(f.target.ID).Status)

		event := f.events.last(t)
		assert.Equal(t, notifier.EventTradeExpired, event.Type)
		assert.Equal(t, f.proposer, event.RecipientID)
	})

	t.Run("fresh pending trades survive", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)

		expired, err := f.manager.ExpireStale(ctx, f.now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, expired)

		got, err := f.store.GetTrade(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TradeStatusPending, got.Status)
	})

	t.Run("rerunning the sweep is a no-op", func(t *testing.T) {
		f := newFixture(t)
		f.propose(t)

		later := f.now.Add(DefaultPendingTTL + time.Hour)
		expired, err := f.manager.ExpireStale(ctx, later)
		require.NoError(t, err)
		assert.Equal(t, 1, expired)

		expired, err = f.manager.ExpireStale(ctx, later)
		require.NoError(t, err)
		assert.Equal(t, 0, expired)
	})

	t.Run("accepted trades are never swept", func(t *testing.T) {
		f := newFixture(t)
		created := f.propose(t)
		_, err := f.manager.Accept(ctx, created.ID, f.receiver, nil, nil)
		require.NoError(t, err)

		expired, err := f.manager.ExpireStale(ctx, f.now.Add(DefaultPendingTTL+time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, expired)
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.propose(t)

	t.Run("participants can read", func(t *testing.T) {
		for _, actor := range []uuid.UUID{f.proposer, f.receiver} {
			got, err := f.manager.Get(ctx, created.ID, actor)
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
		}
	})

	t.Run("outsiders cannot read", func(t *testing.T) {
		_, err := f.manager.Get(ctx, created.ID, uuid.New())
		assert.True(t, apperror.Is(err, apperror.CodeNotAuthorized))
	})

	t.Run("unknown trade is not found", func(t *testing.T) {
		_, err := f.manager.Get(ctx, uuid.New(), f.proposer)
		assert.True(t, apperror.Is(err, apperror.CodeNotFound))
	})
}

func TestGenerateCompletionCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := GenerateCompletionCode()
		assert.Len(t, code, completionCodeLen)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
		seen[code] = true
	}
	// 32^6 possibilities; 100 draws repeating would mean a broken generator
	assert.Greater(t, len(seen), 90)
}
