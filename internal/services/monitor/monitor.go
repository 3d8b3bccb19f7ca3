// Package monitor watches an open position and decides when to exit it.
package monitor

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
	"go.uber.org/zap"
)

const defaultTick = time.Second

// ErrStreamClosed is returned with ExitError when the trade stream ends while the position is open.
var ErrStreamClosed = errors.New("trade stream closed while position is open")

// PositionMonitor applies an exit policy to one position.
type PositionMonitor struct {
	policy domain.ExitPolicy
	tick   time.Duration
	clock  clockwork.Clock
	l      *zap.Logger
}

// NewPositionMonitor creates a monitor. MaxHold must be positive so a watch always ends.
func NewPositionMonitor(policy domain.ExitPolicy, tick time.Duration, clock clockwork.Clock, l *zap.Logger) (*PositionMonitor, error) {
	if policy.MaxHold <= 0 {
		return nil, errors.New("max hold duration must be positive")
	}
	if policy.Grace < 0 {
		return nil, errors.New("grace period must not be negative")
	}
	if policy.TakeProfit.IsNegative() || policy.StopLoss.IsNegative() {
		return nil, errors.New("exit multiples must not be negative")
	}
	if tick <= 0 {
		tick = defaultTick
	}

	return &PositionMonitor{policy: policy, tick: tick, clock: clock, l: l}, nil
}

// Watch blocks until an exit condition fires for pos.
//
// Price exits are evaluated on every valid trade for the position's token once the
// grace period has passed. The max hold timeout is also checked on every tick, so a
// quiet stream still times out. When pos has no entry price, the first valid trade
// sets it. ExitError is returned together with the cause when the stream closes or
// ctx ends; the caller owns the emergency exit.
func (m *PositionMonitor) Watch(ctx context.Context, pos *domain.Position, events <-chan domain.TradeEvent) (domain.ExitReason, error) {
	ticker := m.clock.NewTicker(m.tick)
	defer ticker.Stop()

	current := pos.EntryPrice

	for {
		select {
		case <-ctx.Done():
			return domain.ExitError, ctx.Err()
		case <-ticker.Chan():
			if m.clock.Since(pos.EntryTime) >= m.policy.MaxHold {
				return domain.ExitTimeout, nil
			}
		case ev, ok := <-events:
			if !ok {
				return domain.ExitError, ErrStreamClosed
			}
			if ev.TokenID != pos.TokenID {
				continue
			}
			price, valid := ev.Price()
			if !valid {
				continue
			}
			if !pos.HasEntry() {
				if err := pos.SetEntry(price); err != nil {
					return domain.ExitError, errors.Wrap(err, "set entry price")
				}
				m.l.Info("entry price observed",
					zap.String("token", pos.TokenID),
					zap.String("entry_price", price.String()))
				// the entry trade is the reference price, not an exit candidate
				current = price
				continue
			}
			current = price

			reason := m.policy.Decide(pos.EntryPrice, current, m.elapsed(pos, ev))
			if reason != domain.ExitNone {
				m.l.Info("exit condition",
					zap.String("token", pos.TokenID),
					zap.String("reason", reason.String()),
					zap.String("entry_price", pos.EntryPrice.String()),
					zap.String("price", current.String()),
					zap.String("multiple", multiple(pos.EntryPrice, current)))
				return reason, nil
			}
		}
	}
}

// elapsed prefers the event's receive time so decisions follow the stream, not scheduling.
func (m *PositionMonitor) elapsed(pos *domain.Position, ev domain.TradeEvent) time.Duration {
	if !ev.ReceivedAt.IsZero() && !ev.ReceivedAt.Before(pos.EntryTime) {
		return ev.ReceivedAt.Sub(pos.EntryTime)
	}

	return m.clock.Since(pos.EntryTime)
}

func multiple(entry, current decimal.Decimal) string {
	if !entry.IsPositive() {
		return "n/a"
	}

	return current.Div(entry).StringFixed(4)
}
