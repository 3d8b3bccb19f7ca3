package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason explains why a position was exited.
type ExitReason int

const (
	ExitNone ExitReason = iota
	ExitTakeProfit
	ExitStopLoss
	ExitTimeout
	ExitError
)

func (r ExitReason) String() string {
	switch r {
	case ExitTakeProfit:
		return "TAKE_PROFIT"
	case ExitStopLoss:
		return "STOP_LOSS"
	case ExitTimeout:
		return "TIMEOUT"
	case ExitError:
		return "ERROR"
	default:
		return "NONE"
	}
}

// ExitPolicy holds the exit thresholds of a position.
// A zero TakeProfit or StopLoss disables that exit.
type ExitPolicy struct {
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
	Grace      time.Duration
	MaxHold    time.Duration
}

// Decide evaluates the policy for a position held for elapsed.
// TIMEOUT is checked first and ignores the grace period.
// Price exits need a known positive entry price.
func (p ExitPolicy) Decide(entry, current decimal.Decimal, elapsed time.Duration) ExitReason {
	if p.MaxHold > 0 && elapsed >= p.MaxHold {
		return ExitTimeout
	}
	if elapsed < p.Grace {
		return ExitNone
	}
	if !entry.IsPositive() || !current.IsPositive() {
		return ExitNone
	}

	multiple := current.Div(entry)
	if p.TakeProfit.IsPositive() && multiple.GreaterThanOrEqual(p.TakeProfit) {
		return ExitTakeProfit
	}
	if p.StopLoss.IsPositive() && multiple.LessThanOrEqual(p.StopLoss) {
		return ExitStopLoss
	}

	return ExitNone
}
