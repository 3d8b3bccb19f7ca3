package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrPositionClosed is returned when a closed position is closed again.
var ErrPositionClosed = errors.New("position already closed")

// PositionStatus is OPEN or CLOSED.
type PositionStatus int

const (
	PositionOpen PositionStatus = iota
	PositionClosed
)

func (s PositionStatus) String() string {
	if s == PositionClosed {
		return "CLOSED"
	}

	return "OPEN"
}

// Position is an open holding of a token after a confirmed buy.
type Position struct {
	TokenID string
	// EntryPrice is the first valid trade price after the buy confirmed; zero until observed.
	EntryPrice decimal.Decimal
	EntryTime  time.Time
	// Spent is the quote amount committed by the buy.
	Spent      decimal.Decimal
	BuyTxID    string
	Status     PositionStatus
	ExitReason ExitReason
	ClosedAt   time.Time
}

// NewPosition opens a position for a confirmed buy.
func NewPosition(tokenID string, spent decimal.Decimal, buyTxID string, entryTime time.Time) (*Position, error) {
	if tokenID == "" {
		return nil, errors.New("token id must not be empty")
	}
	if !spent.IsPositive() {
		return nil, errors.New("position amount must be greater than zero")
	}

	return &Position{
		TokenID:    tokenID,
		EntryPrice: decimal.Zero,
		EntryTime:  entryTime,
		Spent:      spent,
		BuyTxID:    buyTxID,
		Status:     PositionOpen,
	}, nil
}

// HasEntry reports whether the entry price is known.
func (p *Position) HasEntry() bool {
	return p.EntryPrice.IsPositive()
}

// SetEntry records the entry price once. Later calls are ignored.
func (p *Position) SetEntry(price decimal.Decimal) error {
	if !price.IsPositive() {
		return errors.New("entry price must be greater than zero")
	}
	if p.HasEntry() {
		return nil
	}
	p.EntryPrice = price

	return nil
}

// Close marks the position closed. A position is closed exactly once.
func (p *Position) Close(reason ExitReason, at time.Time) error {
	if p.Status == PositionClosed {
		return ErrPositionClosed
	}
	p.Status = PositionClosed
	p.ExitReason = reason
	p.ClosedAt = at

	return nil
}
