// Package valuation estimates the monetary value of a trade offer and
// classifies its fairness against a target listing's declared value.
// All arithmetic runs on decimals so fractional service hours never introduce
// floating-point drift into persisted snapshots.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/swapdeck/swapdeck-api/internal/models"
)

// Verdict is the fairness classification of an offer.
type Verdict string

const (
	VerdictFair   Verdict = "fair"
	VerdictUnfair Verdict = "unfair"
)

// DefaultHourlyRate values one pledged service hour, in minor currency units.
// A single global constant so parties cannot game valuations by pricing their
// own time.
const DefaultHourlyRate models.Money = 1500

// DefaultFairnessTolerance is the allowed deviation from the target value.
var DefaultFairnessTolerance = decimal.NewFromFloat(0.20)

// Engine computes offer values. It is a pure function of its inputs.
type Engine struct {
	hourlyRate models.Money
	tolerance  decimal.Decimal
}

// NewEngine creates an engine with the given hourly rate and fairness
// tolerance (fraction of the target value).
func NewEngine(hourlyRate models.Money, tolerance decimal.Decimal) *Engine {
	return &Engine{hourlyRate: hourlyRate, tolerance: tolerance}
}

// NewDefaultEngine creates an engine with production constants.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultHourlyRate, DefaultFairnessTolerance)
}

// LineValue computes the value of a single offer line in minor currency units.
// Service hours are rounded to the nearest minor unit after multiplication.
func (e *Engine) LineValue(line models.OfferLine) models.Money {
	switch l := line.(type) {
	case models.ListingLine:
		return l.DeclaredValue
	case models.CashLine:
		return l.Amount
	case models.ServiceLine:
		v := l.Hours.Mul(decimal.NewFromInt(int64(e.hourlyRate)))
		return models.Money(v.Round(0).IntPart())
	default:
		return 0
	}
}

// TotalValue sums the line values of an offer. The sum is order-independent.
func (e *Engine) TotalValue(offer models.TradeOffer) models.Money {
	var total models.Money
	for _, line := range offer.Lines {
		total += e.LineValue(line)
	}
	return total
}

// Fairness classifies an offer value against a target value. A zero target
// means the listing declared no price ("contact for pricing") and always
// classifies as fair.
func (e *Engine) Fairness(offerValue, targetValue models.Money) Verdict {
	if targetValue == 0 {
		return VerdictFair
	}

	offer := decimal.NewFromInt(int64(offerValue))
	target := decimal.NewFromInt(int64(targetValue))
	deviation := offer.Sub(target).Abs()

	if deviation.LessThanOrEqual(target.Mul(e.tolerance)) {
		return VerdictFair
	}
	return VerdictUnfair
}
