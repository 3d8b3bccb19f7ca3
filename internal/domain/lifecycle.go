package domain

import (
	"time"

	"github.com/pkg/errors"
)

// TokenState is the per-token pipeline state.
type TokenState string

const (
	StateNew          TokenState = "NEW"
	StateScoring      TokenState = "SCORING"
	StateExpired      TokenState = "EXPIRED"
	StateBuying       TokenState = "BUYING"
	StateBuyFailed    TokenState = "BUY_FAILED"
	StatePositionOpen TokenState = "POSITION_OPEN"
	StateSold         TokenState = "SOLD"
	StateSellFailed   TokenState = "SELL_FAILED"
)

var transitions = map[TokenState][]TokenState{
	StateNew:          {StateScoring},
	StateScoring:      {StateExpired, StateBuying},
	StateBuying:       {StateBuyFailed, StatePositionOpen},
	StatePositionOpen: {StateSold, StateSellFailed},
}

// ErrInvalidTransition is returned for transitions the state machine does not allow.
var ErrInvalidTransition = errors.New("invalid token state transition")

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to TokenState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Terminal reports whether no further transitions exist.
func (s TokenState) Terminal() bool {
	return len(transitions[s]) == 0
}

// LifecycleEvent records one state transition of a token.
type LifecycleEvent struct {
	TokenID string            `json:"token_id"`
	From    TokenState        `json:"from"`
	To      TokenState        `json:"to"`
	At      time.Time         `json:"at"`
	Detail  map[string]string `json:"detail,omitempty"`
}

// LifecycleRecord is a journaled LifecycleEvent with its journal index.
type LifecycleRecord struct {
	Index uint64         `json:"index"`
	Event LifecycleEvent `json:"event"`
}

// TokenSnapshot is a read-only view of a tracked token.
type TokenSnapshot struct {
	TokenID    string     `json:"token_id"`
	State      TokenState `json:"state"`
	FirstSeen  time.Time  `json:"first_seen"`
	UpdatedAt  time.Time  `json:"updated_at"`
	EntryPrice string     `json:"entry_price,omitempty"`
	BuyTxID    string     `json:"buy_tx,omitempty"`
	SellTxID   string     `json:"sell_tx,omitempty"`
	ExitReason string     `json:"exit_reason,omitempty"`
}
