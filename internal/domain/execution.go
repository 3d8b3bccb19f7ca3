package domain

import "github.com/shopspring/decimal"

// ExecutionParams are static parameters sent with every trade construction request.
type ExecutionParams struct {
	// Slippage tolerance in percent.
	Slippage decimal.Decimal
	// PriorityFee in SOL.
	PriorityFee decimal.Decimal
	// Pool selects the venue liquidity pool, e.g. "pump".
	Pool string
}

// TradeRequest asks the trade construction service for an unsigned transaction.
type TradeRequest struct {
	PublicKey          string
	Action             Action
	TokenID            string
	Amount             string
	DenominatedInQuote bool
	Slippage           decimal.Decimal
	PriorityFee        decimal.Decimal
	Pool               string
}

// NewTradeRequest combines an intent with execution params.
func NewTradeRequest(publicKey string, intent TradeIntent, params ExecutionParams) TradeRequest {
	return TradeRequest{
		PublicKey:          publicKey,
		Action:             intent.Action,
		TokenID:            intent.TokenID,
		Amount:             intent.AmountString(),
		DenominatedInQuote: intent.QuoteDenominated(),
		Slippage:           params.Slippage,
		PriorityFee:        params.PriorityFee,
		Pool:               params.Pool,
	}
}

// TxState is the ledger view of a broadcast transaction.
type TxState int

const (
	TxPending TxState = iota
	TxConfirmed
	TxFailed
)

func (s TxState) String() string {
	switch s {
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	default:
		return "pending"
	}
}

// TxStatus is one poll result. Reason is set for failed transactions.
type TxStatus struct {
	State  TxState
	Reason string
}
