package domain

import "github.com/shopspring/decimal"

// DefaultSellFloor is the sell volume floor used in the ratio denominator.
var DefaultSellFloor = decimal.NewFromFloat(0.01)

// ScoreFilters are the thresholds a token must meet simultaneously to pass scoring.
type ScoreFilters struct {
	MinTrades int
	MinVolume decimal.Decimal
	MinRatio  decimal.Decimal
	SellFloor decimal.Decimal
}

// Passed reports whether all three thresholds hold for the observation right now.
func (f ScoreFilters) Passed(o *TokenObservation) bool {
	if o.TradeCount < f.MinTrades {
		return false
	}
	if o.TotalVolume().LessThan(f.MinVolume) {
		return false
	}

	return f.Ratio(o).GreaterThanOrEqual(f.MinRatio)
}

// Ratio is the observation's buy/sell ratio with the configured sell floor.
func (f ScoreFilters) Ratio(o *TokenObservation) decimal.Decimal {
	return o.Ratio(f.floor())
}

func (f ScoreFilters) floor() decimal.Decimal {
	if f.SellFloor.IsPositive() {
		return f.SellFloor
	}

	return DefaultSellFloor
}

// Verdict is the outcome of scoring a token.
type Verdict int

const (
	VerdictExpire Verdict = iota
	VerdictPass
)

func (v Verdict) String() string {
	if v == VerdictPass {
		return "PASS"
	}

	return "EXPIRE"
}

// ScoreResult is returned by the scorer. EntryPrice is the provisional entry
// price (first valid trade) and is only meaningful on PASS.
type ScoreResult struct {
	Verdict    Verdict
	EntryPrice decimal.Decimal
	TradeCount int
	Volume     decimal.Decimal
	Ratio      decimal.Decimal
}
