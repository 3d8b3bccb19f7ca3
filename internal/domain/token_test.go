package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func trade(token string, side Action, quote, base string) TradeEvent {
	return TradeEvent{TokenID: token, Side: side, QuoteAmount: dec(quote), BaseAmount: dec(base)}
}

func TestTokenObservation_GoldenSequence(t *testing.T) {
	obs := NewTokenObservation("mint", time.Now())
	floor := dec("0.01")

	steps := []struct {
		ev         TradeEvent
		applied    bool
		buyVolume  string
		sellVolume string
		count      int
		ratio      string
	}{
		{trade("mint", ActionBuy, "0.3", "1000"), true, "0.3", "0", 1, "30"},
		{trade("mint", ActionBuy, "0.3", "900"), true, "0.6", "0", 2, "60"},
		{trade("mint", ActionSell, "0.1", "250"), true, "0.6", "0.1", 3, "6"},
		{trade("other", ActionBuy, "5", "10"), false, "0.6", "0.1", 3, "6"},
		{trade("mint", ActionBuy, "0", "10"), false, "0.6", "0.1", 3, "6"},
		{trade("mint", ActionSell, "0.2", "0"), false, "0.6", "0.1", 3, "6"},
		{trade("mint", ActionSell, "0.2", "500"), true, "0.6", "0.3", 4, "2"},
	}

	for i, step := range steps {
		require.Equal(t, step.applied, obs.Apply(step.ev), "step %d", i)
		require.True(t, dec(step.buyVolume).Equal(obs.BuyVolume), "step %d buy volume %s", i, obs.BuyVolume)
		require.True(t, dec(step.sellVolume).Equal(obs.SellVolume), "step %d sell volume %s", i, obs.SellVolume)
		require.Equal(t, step.count, obs.TradeCount, "step %d", i)
		require.True(t, dec(step.ratio).Equal(obs.Ratio(floor)), "step %d ratio %s", i, obs.Ratio(floor))
	}

	require.True(t, dec("0.0003").Equal(obs.FirstPrice))
	require.True(t, dec("0.0004").Equal(obs.LastPrice))
}

func TestTokenObservation_RatioZeroFloor(t *testing.T) {
	obs := NewTokenObservation("mint", time.Now())
	obs.Apply(trade("mint", ActionBuy, "1", "1"))

	require.True(t, obs.Ratio(decimal.Zero).IsZero())
}

func TestScoreFilters_Passed(t *testing.T) {
	filters := ScoreFilters{MinTrades: 2, MinVolume: dec("0.5"), MinRatio: dec("1.1"), SellFloor: dec("0.01")}

	tests := []struct {
		name   string
		trades []TradeEvent
		want   bool
	}{
		{
			name:   "not enough trades",
			trades: []TradeEvent{trade("m", ActionBuy, "1", "1")},
			want:   false,
		},
		{
			name:   "not enough volume",
			trades: []TradeEvent{trade("m", ActionBuy, "0.1", "1"), trade("m", ActionBuy, "0.1", "1")},
			want:   false,
		},
		{
			name:   "ratio too low",
			trades: []TradeEvent{trade("m", ActionBuy, "0.3", "1"), trade("m", ActionSell, "0.3", "1")},
			want:   false,
		},
		{
			name:   "all thresholds met",
			trades: []TradeEvent{trade("m", ActionBuy, "0.3", "1"), trade("m", ActionBuy, "0.3", "1"), trade("m", ActionSell, "0.1", "1")},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := NewTokenObservation("m", time.Now())
			for _, ev := range tt.trades {
				obs.Apply(ev)
			}
			require.Equal(t, tt.want, filters.Passed(obs))
		})
	}
}

func TestScoreFilters_DefaultFloor(t *testing.T) {
	obs := NewTokenObservation("m", time.Now())
	obs.Apply(trade("m", ActionBuy, "0.05", "1"))

	require.True(t, dec("5").Equal(ScoreFilters{}.Ratio(obs)))
}

func TestTradeEvent_Price(t *testing.T) {
	price, ok := trade("m", ActionBuy, "1", "4").Price()
	require.True(t, ok)
	require.True(t, dec("0.25").Equal(price))

	_, ok = trade("m", ActionBuy, "1", "0").Price()
	require.False(t, ok)

	_, ok = TradeEvent{TokenID: "m"}.Price()
	require.False(t, ok)
}
