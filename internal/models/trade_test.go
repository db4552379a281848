package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTradeStatusTransitions(t *testing.T) {
	all := []TradeStatus{
		TradeStatusPending, TradeStatusAccepted, TradeStatusRejected,
		TradeStatusCancelled, TradeStatusExpired, TradeStatusCompleted,
	}

	allowed := map[TradeStatus]map[TradeStatus]bool{
		TradeStatusPending: {
			TradeStatusAccepted:  true,
			TradeStatusRejected:  true,
			TradeStatusCancelled: true,
			TradeStatusExpired:   true,
		},
		TradeStatusAccepted: {
			TradeStatusCompleted: true,
			TradeStatusCancelled: true,
		},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTradeStatusTerminal(t *testing.T) {
	assert.False(t, TradeStatusPending.Terminal())
	assert.False(t, TradeStatusAccepted.Terminal())
	assert.True(t, TradeStatusRejected.Terminal())
	assert.True(t, TradeStatusCancelled.Terminal())
	assert.True(t, TradeStatusExpired.Terminal())
	assert.True(t, TradeStatusCompleted.Terminal())
}

func TestTradeStatusValid(t *testing.T) {
	assert.True(t, TradeStatusPending.Valid())
	assert.True(t, TradeStatusCompleted.Valid())
	assert.False(t, TradeStatus("negotiating").Valid())
	assert.False(t, TradeStatus("").Valid())
}

func TestTradeParticipant(t *testing.T) {
	proposer := uuid.New()
	receiver := uuid.New()
	trade := Trade{ProposerID: proposer, ReceiverID: receiver}

	assert.True(t, trade.Participant(proposer))
	assert.True(t, trade.Participant(receiver))
	assert.False(t, trade.Participant(uuid.New()))
}
