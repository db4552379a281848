// Package trade implements the trade lifecycle state machine. The Manager is
// the single writer of trade state and of the listing availability flags
// trades touch; every transition runs inside one storage transaction.
package trade

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/swapdeck/swapdeck-api/internal/apperror"
	"github.com/swapdeck/swapdeck-api/internal/models"
	"github.com/swapdeck/swapdeck-api/internal/notifier"
	"github.com/swapdeck/swapdeck-api/internal/valuation"
)

// DefaultPendingTTL is how long a proposal stays open before the sweep
// expires it.
const DefaultPendingTTL = 7 * 24 * time.Hour

// Manager drives trades through the state machine:
//
//	pending  --accept(receiver)-------> accepted
//	pending  --reject(receiver)-------> rejected
//	pending  --cancel(proposer)-------> cancelled
//	pending  --timeout----------------> expired
//	accepted --complete(either party)-> completed
//	accepted --cancel(either party)---> cancelled
type Manager struct {
	store      Store
	valuer     *valuation.Engine
	events     notifier.Notifier
	pendingTTL time.Duration

	now     func() time.Time
	genCode func() string
}

// NewManager wires a lifecycle manager.
func NewManager(store Store, valuer *valuation.Engine, events notifier.Notifier, pendingTTL time.Duration) *Manager {
	if events == nil {
		events = notifier.Noop{}
	}
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	return &Manager{
		store:      store,
		valuer:     valuer,
		events:     events,
		pendingTTL: pendingTTL,
		now:        time.Now,
		genCode:    GenerateCompletionCode,
	}
}

// ProposeParams are the inputs to Propose.
type ProposeParams struct {
	ProposerID      uuid.UUID
	ReceiverID      uuid.UUID
	TargetListingID uuid.UUID
	Offer           models.TradeOffer
	Message         string
}

// ProposeResult is the created trade plus the fairness verdict shown to the
// proposer. The verdict is advisory; unfair offers are still allowed through.
type ProposeResult struct {
	Trade   *models.Trade
	Verdict valuation.Verdict
}

// Propose validates the offer against live listing state, freezes the
// estimated value, creates the trade in pending and reserves every listing it
// touches. The availability checks and the insert are one transaction, so two
// concurrent proposals against the same listing cannot both succeed.
func (m *Manager) Propose(ctx context.Context, params ProposeParams) (*ProposeResult, error) {
	if params.ProposerID == params.ReceiverID {
		return nil, apperror.New(apperror.CodeSelfTrade, "you cannot propose a trade to yourself")
	}
	if len(params.Offer.Lines) == 0 {
		return nil, apperror.New(apperror.CodeEmptyOffer, "an offer needs at least one line")
	}

	now := m.now()
	t := &models.Trade{
		ID:              uuid.New(),
		ProposerID:      params.ProposerID,
		ReceiverID:      params.ReceiverID,
		TargetListingID: params.TargetListingID,
		ProposerOffer:   params.Offer,
		Status:          models.TradeStatusPending,
		Message:         strings.TrimSpace(params.Message),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var targetValue models.Money
	err := m.store.ExecTx(ctx, func(tx TxStore) error {
		target, err := tx.GetListingForUpdate(ctx, params.TargetListingID)
		if err != nil {
			return err
		}
		targetValue = target.Price
		if target.UserID != params.ReceiverID {
			return apperror.New(apperror.CodeOwnership, "the receiver does not own the target listing")
		}
		if !target.Available() || !target.AllowTrade {
			return apperror.Newf(apperror.CodeListingUnavailable, "listing %s is not available for trade", target.ID)
		}

		for _, line := range t.ProposerOffer.Lines {
			l, ok := line.(models.ListingLine)
			if !ok {
				continue
			}
			offered, err := tx.GetListingForUpdate(ctx, l.ListingID)
			if err != nil {
				if apperror.Is(err, apperror.CodeNotFound) {
					return apperror.Newf(apperror.CodeListingUnavailable, "offered listing %s does not exist", l.ListingID)
				}
				return err
			}
			if offered.UserID != params.ProposerID {
				return apperror.Newf(apperror.CodeOwnership, "offered listing %s does not belong to the proposer", l.ListingID)
			}
			if !offered.Available() {
				return apperror.Newf(apperror.CodeListingUnavailable, "offered listing %s is not available", l.ListingID)
			}
			// The declared value must match the authoritative record, not a
			// client-asserted number.
			if offered.Price != l.DeclaredValue {
				return apperror.Newf(apperror.CodeInvalidAmount, "declared value for listing %s does not match the listing record", l.ListingID)
			}
		}

		t.EstimatedValue = m.valuer.TotalValue(t.ProposerOffer)

		if err := tx.InsertTrade(ctx, t); err != nil {
			return err
		}
		if err := tx.SetListingStatus(ctx, target.ID, models.ListingStatusReserved); err != nil {
			return err
		}
		for _, id := range t.ProposerOffer.ListingIDs() {
			if err := tx.SetListingStatus(ctx, id, models.ListingStatusReserved); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	verdict := m.valuer.Fairness(t.EstimatedValue, targetValue)

	m.emit(ctx, notifier.EventTradeProposed, t, t.ReceiverID)
	return &ProposeResult{Trade: t, Verdict: verdict}, nil
}

// Accept moves a pending trade to accepted. Only the receiver may accept.
// The completion code is generated here, not earlier.
func (m *Manager) Accept(ctx context.Context, tradeID, actorID uuid.UUID, meetingLocation *string, meetingTime *time.Time) (*models.Trade, error) {
	var t *models.Trade
	err := m.store.ExecTx(ctx, func(tx TxStore) error {
		var err error
		t, err = tx.GetTradeForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}
		if t.ReceiverID != actorID {
			return apperror.New(apperror.CodeNotAuthorized, "only the receiver may accept a trade")
		}
		if t.Status != models.TradeStatusPending {
			return apperror.Newf(apperror.CodeInvalidState, "trade is %s, only pending trades can be accepted", t.Status)
		}

		t.Status = models.TradeStatusAccepted
		t.CompletionCode = m.genCode()
		t.MeetingLocation = meetingLocation
		t.MeetingTime = meetingTime
		t.UpdatedAt = m.now()
		return tx.UpdateTrade(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	m.emit(ctx, notifier.EventTradeAccepted, t, t.ProposerID)
	return t, nil
}

// Reject moves a pending trade to rejected. Only the receiver may reject, and
// a reason is required. Reserved listings become available again.
func (m *Manager) Reject(ctx context.Context, tradeID, actorID uuid.UUID, reason string) (*models.Trade, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, "a rejection reason is required")
	}

	var t *models.Trade
	err := m.store.ExecTx(ctx, func(tx TxStore) error {
		var err error
		t, err = tx.GetTradeForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}
		if t.ReceiverID != actorID {
			return apperror.New(apperror.CodeNotAuthorized, "only the receiver may reject a trade")
		}
		if t.Status != models.TradeStatusPending {
			return apperror.Newf(apperror.CodeInvalidState, "trade is %s, only pending trades can be rejected", t.Status)
		}

		t.Status = models.TradeStatusRejected
		t.RejectionReason = &reason
		t.UpdatedAt = m.now()
		if err := tx.UpdateTrade(ctx, t); err != nil {
			return err
		}
		return m.releaseListings(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	m.emit(ctx, notifier.EventTradeRejected, t, t.ProposerID)
	return t, nil
}

// Cancel terminates a trade. The proposer may cancel while pending; either
// party may cancel while accepted (the plan fell through). Reserved listings
// become available again.
func (m *Manager) Cancel(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	var t *models.Trade
	err := m.store.ExecTx(ctx, func(tx TxStore) error {
		var err error
		t, err = tx.GetTradeForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}
		if !t.Participant(actorID) {
			return apperror.New(apperror.CodeNotAuthorized, "only trade participants may cancel")
		}

		switch t.Status {
		case models.TradeStatusPending:
			if t.ProposerID != actorID {
				return apperror.New(apperror.CodeNotAuthorized, "only the proposer may cancel a pending trade")
			}
		case models.TradeStatusAccepted:
			// either party
		default:
			return apperror.Newf(apperror.CodeInvalidState, "trade is %s and can no longer be cancelled", t.Status)
		}

		t.Status = models.TradeStatusCancelled
		t.UpdatedAt = m.now()
		if err := tx.UpdateTrade(ctx, t); err != nil {
			return err
		}
		return m.releaseListings(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	m.emit(ctx, notifier.EventTradeCancelled, t, counterpart(t, actorID))
	return t, nil
}

// Complete finishes an accepted trade once the supplied code matches the one
// generated at acceptance. Listings that changed hands are marked traded.
func (m *Manager) Complete(ctx context.Context, tradeID, actorID uuid.UUID, suppliedCode string) (*models.Trade, error) {
	var t *models.Trade
	err := m.store.ExecTx(ctx, func(tx TxStore) error {
		var err error
		t, err = tx.GetTradeForUpdate(ctx, tradeID)
		if err != nil {
			return err
		}
		if !t.Participant(actorID) {
			return apperror.New(apperror.CodeNotAuthorized, "only trade participants may complete")
		}
		if t.Status != models.TradeStatusAccepted {
			return apperror.Newf(apperror.CodeInvalidState, "trade is %s, only accepted trades can be completed", t.Status)
		}
		if subtle.ConstantTimeCompare([]byte(strings.ToUpper(strings.TrimSpace(suppliedCode))), []byte(t.CompletionCode)) != 1 {
			return apperror.New(apperror.CodeInvalidCode, "completion code does not match")
		}

		now := m.now()
		t.Status = models.TradeStatusCompleted
		t.CompletedAt = &now
		t.UpdatedAt = now
		if err := tx.UpdateTrade(ctx, t); err != nil {
			return err
		}

		if err := tx.SetListingStatus(ctx, t.TargetListingID, models.ListingStatusTraded); err != nil {
			return err
		}
		for _, id := range t.ProposerOffer.ListingIDs() {
			if err := tx.SetListingStatus(ctx, id, models.ListingStatusTraded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.emit(ctx, notifier.EventTradeCompleted, t, counterpart(t, actorID))
	return t, nil
}

// ExpireStale sweeps pending trades older than the TTL into expired. Each
// trade commits independently so one failure never blocks the rest, and
// re-running the sweep is a no-op for already-expired trades.
func (m *Manager) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-m.pendingTTL)
	ids, err := m.store.ListPendingBefore(ctx, cutoff, 500)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		t, err := m.expireOne(ctx, id, now)
		if err != nil {
			logrus.WithField("trade_id", id).WithError(err).Error("failed to expire trade")
			continue
		}
		if t != nil {
			expired++
			m.emit(ctx, notifier.EventTradeExpired, t, t.ProposerID)
		}
	}
	return expired, nil
}

// expireOne expires a single trade in its own transaction. Returns nil when
// the trade already left pending (sweep raced a user action).
func (m *Manager) expireOne(ctx context.Context, id uuid.UUID, now time.Time) (*models.Trade, error) {
	var t *models.Trade
	err := m.store.ExecTx(ctx, func(tx TxStore) error {
		var err error
		t, err = tx.GetTradeForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != models.TradeStatusPending {
			t = nil
			return nil
		}

		t.Status = models.TradeStatusExpired
		t.UpdatedAt = now
		if err := tx.UpdateTrade(ctx, t); err != nil {
			return err
		}
		return m.releaseListings(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns a trade visible to one of its participants.
func (m *Manager) Get(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	t, err := m.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !t.Participant(actorID) {
		return nil, apperror.New(apperror.CodeNotAuthorized, "not a participant of this trade")
	}
	return t, nil
}

// releaseListings returns the target and every offered listing to active.
// Called on every terminal transition except completed.
func (m *Manager) releaseListings(ctx context.Context, tx TxStore, t *models.Trade) error {
	if err := tx.SetListingStatus(ctx, t.TargetListingID, models.ListingStatusActive); err != nil {
		return err
	}
	for _, id := range t.ProposerOffer.ListingIDs() {
		if err := tx.SetListingStatus(ctx, id, models.ListingStatusActive); err != nil {
			return err
		}
	}
	return nil
}

// emit sends a lifecycle event. Failures are logged, never propagated.
func (m *Manager) emit(ctx context.Context, eventType notifier.EventType, t *models.Trade, recipientID uuid.UUID) {
	err := m.events.Notify(ctx, notifier.Event{
		Type:        eventType,
		TradeID:     t.ID,
		RecipientID: recipientID,
		OccurredAt:  m.now(),
		Payload:     t,
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"event":    eventType,
			"trade_id": t.ID,
		}).WithError(err).Warn("lifecycle event delivery failed")
	}
}

// counterpart returns the other party of the trade.
func counterpart(t *models.Trade, actorID uuid.UUID) uuid.UUID {
	if t.ProposerID == actorID {
		return t.ReceiverID
	}
	return t.ProposerID
}
