package domain

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Denomination tells how TradeIntent.Amount is expressed.
type Denomination int

const (
	// DenominationQuote amount is in quote currency (SOL).
	DenominationQuote Denomination = iota
	// DenominationPercent amount is a percentage of current holdings.
	DenominationPercent
)

var fullHoldings = decimal.NewFromInt(100)

// TradeIntent is what the bot wants the gateway to execute.
type TradeIntent struct {
	ID           string
	Action       Action
	TokenID      string
	Amount       decimal.Decimal
	Denomination Denomination
}

// NewBuyIntent creates a quote denominated buy.
func NewBuyIntent(tokenID string, quoteAmount decimal.Decimal) (TradeIntent, error) {
	if tokenID == "" {
		return TradeIntent{}, errors.New("token id must not be empty")
	}
	if !quoteAmount.IsPositive() {
		return TradeIntent{}, errors.New("buy amount must be greater than zero")
	}

	return TradeIntent{
		ID:           uuid.New().String(),
		Action:       ActionBuy,
		TokenID:      tokenID,
		Amount:       quoteAmount,
		Denomination: DenominationQuote,
	}, nil
}

// NewFullExitIntent creates a sell of 100% of holdings.
func NewFullExitIntent(tokenID string) TradeIntent {
	return TradeIntent{
		ID:           uuid.New().String(),
		Action:       ActionSell,
		TokenID:      tokenID,
		Amount:       fullHoldings,
		Denomination: DenominationPercent,
	}
}

// QuoteDenominated reports whether Amount is a quote currency amount.
func (i TradeIntent) QuoteDenominated() bool {
	return i.Denomination == DenominationQuote
}

// AmountString renders the amount for the trade construction API: "0.01" or "100%".
func (i TradeIntent) AmountString() string {
	if i.Denomination == DenominationPercent {
		return i.Amount.String() + "%"
	}

	return i.Amount.String()
}
