// Package notifier delivers trade lifecycle events to the counterparty.
// Delivery is fire-and-forget: a failed delivery never rolls back the state
// transition that produced it.
package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventType names a trade lifecycle event.
type EventType string

const (
	EventTradeProposed  EventType = "trade.proposed"
	EventTradeAccepted  EventType = "trade.accepted"
	EventTradeRejected  EventType = "trade.rejected"
	EventTradeCancelled EventType = "trade.cancelled"
	EventTradeCompleted EventType = "trade.completed"
	EventTradeExpired   EventType = "trade.expired"
)

// Event is one lifecycle notification addressed to a single recipient.
type Event struct {
	Type        EventType   `json:"type"`
	TradeID     uuid.UUID   `json:"trade_id"`
	RecipientID uuid.UUID   `json:"recipient_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Payload     interface{} `json:"payload,omitempty"`
}

// Notifier delivers events to recipients.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Multi fans an event out to several notifiers. Each delivery is attempted
// independently; failures are logged and do not stop the others.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify implements Notifier.
func (m *Multi) Notify(ctx context.Context, event Event) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			logrus.WithFields(logrus.Fields{
				"event":    event.Type,
				"trade_id": event.TradeID,
			}).WithError(err).Warn("notification delivery failed")
		}
	}
	return nil
}

// Noop discards all events. Used where no delivery channel is configured.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, Event) error { return nil }
