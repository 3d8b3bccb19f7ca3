package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenObservation accumulates trade flow for one token while it is being scored.
// It is owned by exactly one scoring task.
type TokenObservation struct {
	TokenID     string
	FirstSeenAt time.Time
	BuyVolume   decimal.Decimal
	SellVolume  decimal.Decimal
	TradeCount  int
	LastPrice   decimal.Decimal
	// FirstPrice is the price of the first valid trade, the provisional entry price.
	FirstPrice decimal.Decimal
}

func NewTokenObservation(tokenID string, firstSeenAt time.Time) *TokenObservation {
	return &TokenObservation{
		TokenID:     tokenID,
		FirstSeenAt: firstSeenAt,
		BuyVolume:   decimal.Zero,
		SellVolume:  decimal.Zero,
		LastPrice:   decimal.Zero,
		FirstPrice:  decimal.Zero,
	}
}

// Apply folds a trade into the accumulators. Events for another token and
// malformed events are ignored and false is returned.
func (o *TokenObservation) Apply(ev TradeEvent) bool {
	if ev.TokenID != o.TokenID {
		return false
	}
	price, ok := ev.Price()
	if !ok {
		return false
	}

	o.TradeCount++
	if ev.Side == ActionBuy {
		o.BuyVolume = o.BuyVolume.Add(ev.QuoteAmount)
	} else {
		o.SellVolume = o.SellVolume.Add(ev.QuoteAmount)
	}
	if o.TradeCount == 1 {
		o.FirstPrice = price
	}
	o.LastPrice = price

	return true
}

// TotalVolume is buy plus sell volume in quote units.
func (o *TokenObservation) TotalVolume() decimal.Decimal {
	return o.BuyVolume.Add(o.SellVolume)
}

// Ratio returns buy_volume / max(sell_volume, floor).
func (o *TokenObservation) Ratio(floor decimal.Decimal) decimal.Decimal {
	denominator := decimal.Max(o.SellVolume, floor)
	if !denominator.IsPositive() {
		// floor misconfigured as zero and no sells yet
		return decimal.Zero
	}

	return o.BuyVolume.Div(denominator)
}
