package scorer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func trade(token string, side domain.Action, quote, base string) domain.TradeEvent {
	return domain.TradeEvent{TokenID: token, Side: side, QuoteAmount: dec(quote), BaseAmount: dec(base)}
}

func scenarioFilters() domain.ScoreFilters {
	return domain.ScoreFilters{MinTrades: 2, MinVolume: dec("0.5"), MinRatio: dec("1.1"), SellFloor: dec("0.01")}
}

type evaluation struct {
	res domain.ScoreResult
	err error
}

func startEvaluate(t *testing.T, s *WindowScorer, obs *domain.TokenObservation, events chan domain.TradeEvent) <-chan evaluation {
	t.Helper()
	done := make(chan evaluation, 1)
	go func() {
		res, err := s.Evaluate(context.Background(), obs, events)
		done <- evaluation{res, err}
	}()

	return done
}

func TestEvaluate_PassFiresOnThresholdEvent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := NewWindowScorer(scenarioFilters(), 15*time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	obs := domain.NewTokenObservation("mint", clock.Now())
	events := make(chan domain.TradeEvent)
	done := startEvaluate(t, s, obs, events)

	events <- trade("mint", domain.ActionBuy, "0.3", "1000")
	events <- trade("mint", domain.ActionBuy, "0.3", "1000")

	// trades=2, volume=0.6, ratio=60
	select {
	case ev := <-done:
		require.Equal(t, domain.VerdictPass, ev.res.Verdict)
		require.Equal(t, 2, ev.res.TradeCount)
		return
	case <-time.After(time.Second):
		t.Fatal("scorer did not pass after thresholds were met")
	}
}

func TestEvaluate_ScenarioA(t *testing.T) {
	clock := clockwork.NewFakeClock()
	filters := scenarioFilters()
	filters.MinTrades = 3
	s, err := NewWindowScorer(filters, 15*time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	obs := domain.NewTokenObservation("mint", clock.Now())
	events := make(chan domain.TradeEvent, 3)
	events <- trade("mint", domain.ActionBuy, "0.3", "1000")
	events <- trade("mint", domain.ActionBuy, "0.3", "1000")
	events <- trade("mint", domain.ActionSell, "0.1", "400")

	res, err := s.Evaluate(context.Background(), obs, events)
	require.NoError(t, err)
	require.Equal(t, domain.VerdictPass, res.Verdict)
	require.Equal(t, 3, res.TradeCount)
	require.True(t, dec("0.7").Equal(res.Volume))
	require.True(t, dec("6").Equal(res.Ratio))
	require.True(t, dec("0.0003").Equal(res.EntryPrice))
}

func TestEvaluate_NoEarlyPass(t *testing.T) {
	clock := clockwork.NewFakeClock()
	filters := domain.ScoreFilters{MinTrades: 3, MinVolume: dec("1"), MinRatio: dec("2")}
	s, err := NewWindowScorer(filters, 15*time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	obs := domain.NewTokenObservation("mint", clock.Now())
	events := make(chan domain.TradeEvent, 8)
	events <- trade("mint", domain.ActionBuy, "0.9", "1")
	// ratio 1.8
	events <- trade("mint", domain.ActionSell, "0.5", "1")
	events <- trade("mint", domain.ActionBuy, "0.1", "0")
	events <- trade("other", domain.ActionBuy, "50", "1")
	// ratio 2.0, volume 1.5, trades 3
	events <- trade("mint", domain.ActionBuy, "0.1", "1")
	events <- trade("mint", domain.ActionBuy, "1", "1")

	res, err := s.Evaluate(context.Background(), obs, events)
	require.NoError(t, err)
	require.Equal(t, domain.VerdictPass, res.Verdict)
	require.Equal(t, 3, res.TradeCount)
	require.Len(t, events, 1)
}

func TestEvaluate_ScenarioB_Expire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := NewWindowScorer(scenarioFilters(), 15*time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	obs := domain.NewTokenObservation("mint", clock.Now())
	events := make(chan domain.TradeEvent, 1)
	events <- trade("mint", domain.ActionBuy, "0.3", "1000")
	done := startEvaluate(t, s, obs, events)

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	require.Eventually(t, func() bool { return len(events) == 0 }, time.Second, 5*time.Millisecond)
	clock.Advance(15 * time.Second)

	select {
	case ev := <-done:
		require.NoError(t, ev.err)
		require.Equal(t, domain.VerdictExpire, ev.res.Verdict)
		require.Equal(t, 1, ev.res.TradeCount)
	case <-time.After(time.Second):
		t.Fatal("scorer did not expire")
	}
}

func TestEvaluate_SellsOnlyThenStreamClosed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := NewWindowScorer(domain.ScoreFilters{MinTrades: 1, MinRatio: dec("0.5")}, time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	obs := domain.NewTokenObservation("mint", clock.Now())
	events := make(chan domain.TradeEvent, 2)
	events <- trade("mint", domain.ActionSell, "0.2", "1")
	events <- trade("mint", domain.ActionBuy, "0", "0")
	close(events)

	res, err := s.Evaluate(context.Background(), obs, events)
	require.ErrorIs(t, err, ErrStreamClosed)
	require.Equal(t, domain.VerdictExpire, res.Verdict)
	require.Equal(t, 1, res.TradeCount)
	require.True(t, res.Ratio.IsZero())
}

func TestEvaluate_ContextCancelled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := NewWindowScorer(scenarioFilters(), 15*time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Evaluate(ctx, domain.NewTokenObservation("mint", clock.Now()), make(chan domain.TradeEvent))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, domain.VerdictExpire, res.Verdict)
}

func TestEvaluate_ZeroThresholdsPassWithoutTrades(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := NewWindowScorer(domain.ScoreFilters{}, 15*time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	obs := domain.NewTokenObservation("mint", clock.Now())
	res, err := s.Evaluate(context.Background(), obs, make(chan domain.TradeEvent))
	require.NoError(t, err)
	require.Equal(t, domain.VerdictPass, res.Verdict)
	require.Zero(t, res.TradeCount)
	require.True(t, res.EntryPrice.IsZero())
}

func TestEvaluate_MinTradesOneWaitsForTrade(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := NewWindowScorer(domain.ScoreFilters{MinTrades: 1}, 15*time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	obs := domain.NewTokenObservation("mint", clock.Now())
	events := make(chan domain.TradeEvent)
	done := startEvaluate(t, s, obs, events)
	require.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	events <- trade("mint", domain.ActionSell, "0.1", "100")
	ev := <-done
	require.NoError(t, ev.err)
	require.Equal(t, domain.VerdictPass, ev.res.Verdict)
	require.Equal(t, 1, ev.res.TradeCount)
}

func TestNewWindowScorer_Validation(t *testing.T) {
	_, err := NewWindowScorer(scenarioFilters(), 0, clockwork.NewFakeClock(), zap.NewNop())
	require.Error(t, err)

	_, err = NewWindowScorer(domain.ScoreFilters{MinVolume: dec("-1")}, time.Second, clockwork.NewFakeClock(), zap.NewNop())
	require.Error(t, err)
}
