package valuation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/swapdeck/swapdeck-api/internal/models"
)

func TestLineValue(t *testing.T) {
	e := NewDefaultEngine()

	t.Run("listing line uses declared value", func(t *testing.T) {
		line := models.ListingLine{ListingID: uuid.New(), DeclaredValue: 4500}
		assert.Equal(t, models.Money(4500), e.LineValue(line))
	})

	t.Run("cash line uses amount", func(t *testing.T) {
		assert.Equal(t, models.Money(700), e.LineValue(models.CashLine{Amount: 700}))
	})

	t.Run("service line multiplies hours by rate", func(t *testing.T) {
		line := models.ServiceLine{Description: "tutoring", Hours: decimal.NewFromInt(3)}
		assert.Equal(t, models.Money(4500), e.LineValue(line))
	})

	t.Run("fractional hours round to nearest unit", func(t *testing.T) {
		// 2.5h * 1500 = 3750, exact
		line := models.ServiceLine{Hours: decimal.NewFromFloat(2.5)}
		assert.Equal(t, models.Money(3750), e.LineValue(line))

		// 0.333h * 1500 = 499.5, rounds to 500
		line = models.ServiceLine{Hours: decimal.NewFromFloat(0.333)}
		assert.Equal(t, models.Money(500), e.LineValue(line))
	})
}

func TestTotalValue(t *testing.T) {
	e := NewDefaultEngine()

	lines := []models.OfferLine{
		models.ListingLine{ListingID: uuid.New(), DeclaredValue: 1000},
		models.CashLine{Amount: 250},
		models.ServiceLine{Description: "moving help", Hours: decimal.NewFromInt(2)},
	}

	t.Run("sums all lines", func(t *testing.T) {
		total := e.TotalValue(models.TradeOffer{Lines: lines})
		assert.Equal(t, models.Money(1000+250+3000), total)
	})

	t.Run("order independent", func(t *testing.T) {
		reversed := []models.OfferLine{lines[2], lines[0], lines[1]}
		assert.Equal(t,
			e.TotalValue(models.TradeOffer{Lines: lines}),
			e.TotalValue(models.TradeOffer{Lines: reversed}))
	})

	t.Run("empty offer is zero", func(t *testing.T) {
		assert.Equal(t, models.Money(0), e.TotalValue(models.TradeOffer{}))
	})
}

func TestFairness(t *testing.T) {
	e := NewDefaultEngine()

	t.Run("zero target is always fair", func(t *testing.T) {
		assert.Equal(t, VerdictFair, e.Fairness(0, 0))
		assert.Equal(t, VerdictFair, e.Fairness(1_000_000, 0))
	})

	t.Run("exact match is fair", func(t *testing.T) {
		assert.Equal(t, VerdictFair, e.Fairness(10000, 10000))
	})

	t.Run("boundary of the tolerance band is fair", func(t *testing.T) {
		assert.Equal(t, VerdictFair, e.Fairness(8000, 10000))
		assert.Equal(t, VerdictFair, e.Fairness(12000, 10000))
	})

	t.Run("just outside the band is unfair", func(t *testing.T) {
		assert.Equal(t, VerdictUnfair, e.Fairness(7999, 10000))
		assert.Equal(t, VerdictUnfair, e.Fairness(12001, 10000))
	})

	t.Run("deviation is symmetric", func(t *testing.T) {
		for _, offer := range []models.Money{5000, 8000, 11999, 15000} {
			target := models.Money(10000)
			low := e.Fairness(target-(offer-target), target)
			high := e.Fairness(offer, target)
			assert.Equal(t, low, high, "offer %d", offer)
		}
	})
}
