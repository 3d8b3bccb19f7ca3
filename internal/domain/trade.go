package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CreationEvent announces a token the bot has not necessarily seen before.
type CreationEvent struct {
	TokenID string
	Name    string
	Symbol  string
	// Source is "create" for a launch announcement, "trade" when the token was first seen through a trade.
	Source     string
	ReceivedAt time.Time
}

// TradeEvent is a single normalized trade for one token.
type TradeEvent struct {
	TokenID string
	// Side buy or sell trade.
	Side Action
	// QuoteAmount size of the trade in quote currency (SOL).
	QuoteAmount decimal.Decimal
	// BaseAmount size of the trade in token units.
	BaseAmount decimal.Decimal
	Signature  string
	ReceivedAt time.Time
}

// Valid reports whether both legs are strictly positive. Invalid events are skipped everywhere.
func (t TradeEvent) Valid() bool {
	return t.QuoteAmount.IsPositive() && t.BaseAmount.IsPositive()
}

// Price returns quote/base. The second value is false for malformed events.
func (t TradeEvent) Price() (decimal.Decimal, bool) {
	if !t.Valid() {
		return decimal.Zero, false
	}

	return t.QuoteAmount.Div(t.BaseAmount), true
}

// String returns a human-readable string representation.
func (t TradeEvent) String() string {
	return fmt.Sprintf("%s %s quote: %s base: %s", t.TokenID, t.Side.String(), t.QuoteAmount.String(), t.BaseAmount.String())
}
