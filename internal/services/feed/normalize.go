package feed

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
)

const txTypeCreate = "create"

// wireMessage is a PumpPortal data frame. Amounts arrive as numbers or numeric strings.
type wireMessage struct {
	Mint        string          `json:"mint"`
	TxType      string          `json:"txType"`
	SolAmount   decimal.Decimal `json:"solAmount"`
	TokenAmount decimal.Decimal `json:"tokenAmount"`
	Signature   string          `json:"signature"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Message     string          `json:"message"`
}

// Frame is one normalized stream frame. At most one field is set;
// both are nil for acknowledgements and other control frames.
type Frame struct {
	Creation *domain.CreationEvent
	Trade    *domain.TradeEvent
}

// Normalize converts a raw frame. Frames that cannot be used are reported as domain.ErrMalformedEvent.
func Normalize(raw []byte, receivedAt time.Time) (Frame, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Frame{}, errors.Wrap(domain.ErrMalformedEvent, err.Error())
	}

	if msg.Mint == "" {
		if msg.Message != "" {
			return Frame{}, nil
		}
		return Frame{}, errors.Wrap(domain.ErrMalformedEvent, "frame without mint")
	}

	if msg.TxType == "" || msg.TxType == txTypeCreate {
		return Frame{Creation: &domain.CreationEvent{
			TokenID:    msg.Mint,
			Name:       msg.Name,
			Symbol:     msg.Symbol,
			Source:     txTypeCreate,
			ReceivedAt: receivedAt,
		}}, nil
	}

	side, err := domain.ParseAction(msg.TxType)
	if err != nil {
		return Frame{}, errors.Wrap(domain.ErrMalformedEvent, err.Error())
	}

	ev := domain.TradeEvent{
		TokenID:     msg.Mint,
		Side:        side,
		QuoteAmount: msg.SolAmount,
		BaseAmount:  msg.TokenAmount,
		Signature:   msg.Signature,
		ReceivedAt:  receivedAt,
	}
	if !ev.Valid() {
		return Frame{}, errors.Wrapf(domain.ErrMalformedEvent, "non-positive amounts for %s", msg.Mint)
	}

	return Frame{Trade: &ev}, nil
}
