package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeOfferJSON(t *testing.T) {
	t.Run("lines carry a type discriminator", func(t *testing.T) {
		offer := TradeOffer{Lines: []OfferLine{CashLine{Amount: 500}}}

		data, err := json.Marshal(offer)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"type":"cash","amount":500}]`, string(data))
	})

	t.Run("round trip preserves concrete types", func(t *testing.T) {
		offer := TradeOffer{Lines: []OfferLine{
			ListingLine{ListingID: uuid.New(), OwnerID: uuid.New(), DeclaredValue: 4200},
			CashLine{Amount: 1500},
			ServiceLine{Description: "piano lessons", Hours: decimal.NewFromFloat(1.5)},
		}}

		data, err := json.Marshal(offer)
		require.NoError(t, err)

		var decoded TradeOffer
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Len(t, decoded.Lines, 3)

		listing, ok := decoded.Lines[0].(ListingLine)
		require.True(t, ok)
		assert.Equal(t, offer.Lines[0], listing)

		cash, ok := decoded.Lines[1].(CashLine)
		require.True(t, ok)
		assert.Equal(t, Money(1500), cash.Amount)

		service, ok := decoded.Lines[2].(ServiceLine)
		require.True(t, ok)
		assert.Equal(t, "piano lessons", service.Description)
		assert.True(t, service.Hours.Equal(decimal.NewFromFloat(1.5)))
	})

	t.Run("unknown line type rejected", func(t *testing.T) {
		var decoded TradeOffer
		err := json.Unmarshal([]byte(`[{"type":"favor"}]`), &decoded)
		assert.Error(t, err)
	})

	t.Run("incomplete listing line rejected", func(t *testing.T) {
		var decoded TradeOffer
		err := json.Unmarshal([]byte(`[{"type":"listing","declared_value":100}]`), &decoded)
		assert.Error(t, err)
	})
}

func TestListingIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	offer := TradeOffer{Lines: []OfferLine{
		ListingLine{ListingID: a},
		CashLine{Amount: 100},
		ListingLine{ListingID: b},
	}}

	assert.Equal(t, []uuid.UUID{a, b}, offer.ListingIDs())
	assert.Nil(t, TradeOffer{}.ListingIDs())
}
