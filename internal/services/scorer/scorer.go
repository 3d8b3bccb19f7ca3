// Package scorer decides whether a freshly launched token has enough buy pressure to enter.
package scorer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
	"go.uber.org/zap"
)

// ErrStreamClosed is returned when the trade stream ends before the window does.
var ErrStreamClosed = errors.New("trade stream closed")

// WindowScorer scores one token over a bounded observation window.
type WindowScorer struct {
	filters domain.ScoreFilters
	window  time.Duration
	clock   clockwork.Clock
	l       *zap.Logger
}

// NewWindowScorer creates a scorer. window must be positive.
func NewWindowScorer(filters domain.ScoreFilters, window time.Duration, clock clockwork.Clock, l *zap.Logger) (*WindowScorer, error) {
	if window <= 0 {
		return nil, errors.New("scoring window must be positive")
	}
	if filters.MinTrades < 0 || filters.MinVolume.IsNegative() || filters.MinRatio.IsNegative() {
		return nil, errors.New("scoring thresholds must not be negative")
	}
	if filters.SellFloor.IsZero() {
		filters.SellFloor = domain.DefaultSellFloor
	}

	return &WindowScorer{filters: filters, window: window, clock: clock, l: l}, nil
}

// Evaluate consumes events until the filters pass or the window elapses.
// Events for other tokens and malformed events are skipped.
// A PASS is returned the moment all thresholds hold.
// The stream closing or ctx ending before a verdict yields EXPIRE with a non-nil error.
func (s *WindowScorer) Evaluate(ctx context.Context, obs *domain.TokenObservation, events <-chan domain.TradeEvent) (domain.ScoreResult, error) {
	// all-zero thresholds enter on the creation event alone
	if s.filters.Passed(obs) {
		return s.result(domain.VerdictPass, obs), nil
	}

	timer := s.clock.NewTimer(s.window)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.result(domain.VerdictExpire, obs), ctx.Err()
		case <-timer.Chan():
			return s.result(domain.VerdictExpire, obs), nil
		case ev, ok := <-events:
			if !ok {
				return s.result(domain.VerdictExpire, obs), ErrStreamClosed
			}
			if !obs.Apply(ev) {
				s.l.Debug("skip trade event", zap.String("token", obs.TokenID), zap.String("event", ev.String()))
				continue
			}
			if s.filters.Passed(obs) {
				return s.result(domain.VerdictPass, obs), nil
			}
		}
	}
}

func (s *WindowScorer) result(v domain.Verdict, obs *domain.TokenObservation) domain.ScoreResult {
	return domain.ScoreResult{
		Verdict:    v,
		EntryPrice: obs.FirstPrice,
		TradeCount: obs.TradeCount,
		Volume:     obs.TotalVolume(),
		Ratio:      s.filters.Ratio(obs),
	}
}
