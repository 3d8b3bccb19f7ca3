package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func scenarioPolicy() domain.ExitPolicy {
	return domain.ExitPolicy{
		TakeProfit: dec("1.5"),
		StopLoss:   dec("0.85"),
		Grace:      3 * time.Second,
		MaxHold:    300 * time.Second,
	}
}

func openPosition(t *testing.T, clock clockwork.Clock, entry string) *domain.Position {
	t.Helper()
	pos, err := domain.NewPosition("mint", dec("0.01"), "buy-tx", clock.Now())
	require.NoError(t, err)
	if entry != "" {
		require.NoError(t, pos.SetEntry(dec(entry)))
	}

	return pos
}

// priced builds a trade whose quote/base equals price.
func priced(clock clockwork.Clock, after time.Duration, price string) domain.TradeEvent {
	return domain.TradeEvent{
		TokenID:     "mint",
		Side:        domain.ActionBuy,
		QuoteAmount: dec(price),
		BaseAmount:  decimal.NewFromInt(1),
		ReceivedAt:  clock.Now().Add(after),
	}
}

type watchResult struct {
	reason domain.ExitReason
	err    error
}

func startWatch(ctx context.Context, m *PositionMonitor, pos *domain.Position, events <-chan domain.TradeEvent) <-chan watchResult {
	done := make(chan watchResult, 1)
	go func() {
		reason, err := m.Watch(ctx, pos, events)
		done <- watchResult{reason, err}
	}()

	return done
}

func TestWatch_TakeProfitAfterGrace(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m, err := NewPositionMonitor(scenarioPolicy(), time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	pos := openPosition(t, clock, "1.0")
	events := make(chan domain.TradeEvent, 2)
	events <- priced(clock, time.Second, "2.0")
	events <- priced(clock, 4*time.Second, "1.6")

	reason, err := m.Watch(context.Background(), pos, events)
	require.NoError(t, err)
	require.Equal(t, domain.ExitTakeProfit, reason)
	require.Empty(t, events)
}

func TestWatch_NoExitInsideGrace(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m, err := NewPositionMonitor(scenarioPolicy(), time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	pos := openPosition(t, clock, "1.0")
	events := make(chan domain.TradeEvent, 2)
	events <- priced(clock, time.Second, "2.0")
	events <- priced(clock, 2*time.Second, "0.1")
	done := startWatch(context.Background(), m, pos, events)

	require.Eventually(t, func() bool { return len(events) == 0 }, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	events <- priced(clock, 5*time.Second, "0.8")
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, domain.ExitStopLoss, res.reason)
}

func TestWatch_TimeoutWithoutTrades(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m, err := NewPositionMonitor(scenarioPolicy(), time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	pos := openPosition(t, clock, "")
	done := startWatch(context.Background(), m, pos, make(chan domain.TradeEvent))

	require.NoError(t, clock.BlockUntilContext(context.Background(), 1))
	clock.Advance(299 * time.Second)
	require.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Second)
	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.Equal(t, domain.ExitTimeout, res.reason)
	case <-time.After(time.Second):
		t.Fatal("monitor did not time out")
	}
	require.False(t, pos.HasEntry())
}

func TestWatch_FirstTradeSetsEntry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m, err := NewPositionMonitor(scenarioPolicy(), time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	pos := openPosition(t, clock, "")
	events := make(chan domain.TradeEvent, 4)
	events <- domain.TradeEvent{TokenID: "mint", QuoteAmount: dec("1"), BaseAmount: decimal.Zero}
	events <- domain.TradeEvent{TokenID: "other", QuoteAmount: dec("9"), BaseAmount: dec("1")}
	events <- priced(clock, 4*time.Second, "0.002")
	events <- priced(clock, 5*time.Second, "0.0016")

	reason, err := m.Watch(context.Background(), pos, events)
	require.NoError(t, err)
	require.True(t, dec("0.002").Equal(pos.EntryPrice))
	require.Equal(t, domain.ExitStopLoss, reason)
}

func TestWatch_EntryTradeIsNotAnExit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	breakeven := domain.ExitPolicy{
		TakeProfit: dec("1.0"),
		StopLoss:   dec("0.1"),
		Grace:      3 * time.Second,
		MaxHold:    30 * time.Second,
	}
	core, logs := observer.New(zap.InfoLevel)
	m, err := NewPositionMonitor(breakeven, time.Second, clock, zap.New(core))
	require.NoError(t, err)

	pos := openPosition(t, clock, "")
	events := make(chan domain.TradeEvent, 1)
	events <- priced(clock, 4*time.Second, "0.002")
	done := startWatch(context.Background(), m, pos, events)

	require.Eventually(t, func() bool {
		return logs.FilterMessage("entry price observed").Len() == 1
	}, time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	events <- priced(clock, 5*time.Second, "0.002")
	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, domain.ExitTakeProfit, res.reason)
	require.True(t, dec("0.002").Equal(pos.EntryPrice))
}

func TestWatch_StreamClosed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m, err := NewPositionMonitor(scenarioPolicy(), time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	events := make(chan domain.TradeEvent)
	close(events)

	reason, err := m.Watch(context.Background(), openPosition(t, clock, "1"), events)
	require.ErrorIs(t, err, ErrStreamClosed)
	require.Equal(t, domain.ExitError, reason)
}

func TestWatch_ContextCancelled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m, err := NewPositionMonitor(scenarioPolicy(), time.Second, clock, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reason, err := m.Watch(ctx, openPosition(t, clock, "1"), make(chan domain.TradeEvent))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, domain.ExitError, reason)
}

func TestNewPositionMonitor_Validation(t *testing.T) {
	_, err := NewPositionMonitor(domain.ExitPolicy{}, time.Second, clockwork.NewFakeClock(), zap.NewNop())
	require.Error(t, err)

	_, err = NewPositionMonitor(domain.ExitPolicy{MaxHold: time.Minute, StopLoss: dec("-1")}, time.Second, clockwork.NewFakeClock(), zap.NewNop())
	require.Error(t, err)
}
