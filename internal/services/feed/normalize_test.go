package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
)

func TestNormalize(t *testing.T) {
	at := time.Unix(1700000000, 0)

	tests := []struct {
		name      string
		raw       string
		creation  bool
		trade     bool
		malformed bool
	}{
		{name: "create", raw: `{"mint":"m1","txType":"create","name":"Dog","symbol":"DOG","solAmount":1.5}`, creation: true},
		{name: "mint without type", raw: `{"mint":"m1"}`, creation: true},
		{name: "buy with numbers", raw: `{"mint":"m1","txType":"buy","solAmount":0.3,"tokenAmount":1000}`, trade: true},
		{name: "sell with strings", raw: `{"mint":"m1","txType":"sell","solAmount":"0.1","tokenAmount":"250.5"}`, trade: true},
		{name: "subscription ack", raw: `{"message":"Successfully subscribed to token creation events."}`},
		{name: "not json", raw: `hello`, malformed: true},
		{name: "no mint", raw: `{"txType":"buy"}`, malformed: true},
		{name: "unknown tx type", raw: `{"mint":"m1","txType":"migrate"}`, malformed: true},
		{name: "zero base amount", raw: `{"mint":"m1","txType":"buy","solAmount":0.3,"tokenAmount":0}`, malformed: true},
		{name: "missing amounts", raw: `{"mint":"m1","txType":"sell"}`, malformed: true},
		{name: "bad number", raw: `{"mint":"m1","txType":"buy","solAmount":"abc","tokenAmount":1}`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Normalize([]byte(tt.raw), at)
			if tt.malformed {
				require.ErrorIs(t, err, domain.ErrMalformedEvent)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.creation, frame.Creation != nil)
			require.Equal(t, tt.trade, frame.Trade != nil)
		})
	}
}

func TestNormalize_TradeFields(t *testing.T) {
	at := time.Unix(1700000000, 0)
	frame, err := Normalize([]byte(`{"mint":"m1","txType":"sell","solAmount":"0.1","tokenAmount":400,"signature":"sig"}`), at)
	require.NoError(t, err)

	ev := frame.Trade
	require.Equal(t, "m1", ev.TokenID)
	require.Equal(t, domain.ActionSell, ev.Side)
	require.Equal(t, "sig", ev.Signature)
	require.Equal(t, at, ev.ReceivedAt)
	price, ok := ev.Price()
	require.True(t, ok)
	require.Equal(t, "0.00025", price.String())
}
