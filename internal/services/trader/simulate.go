package trader

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
	"go.uber.org/zap"
)

const (
	quoteCurrency = "SOL"
	txPrefix      = "simulated_"
)

var (
	hundred = decimal.NewFromInt(100)
	// DefaultVirtualSlippage is applied against the trader on both sides.
	DefaultVirtualSlippage = decimal.RequireFromString("0.01")
)

// Pricer returns the latest observed price of a token.
type Pricer interface {
	LastPrice(tokenID string) (decimal.Decimal, bool)
}

// SimulateTrader fills intents against observed stream prices without touching the chain.
// It satisfies the same Submit contract as the live gateway.
type SimulateTrader struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	pricer   Pricer
	slippage decimal.Decimal
	fee      decimal.Decimal
	wallet   map[string]decimal.Decimal
	cost     map[string]decimal.Decimal
	realized decimal.Decimal
}

// NewSimulateTrader creates a paper wallet holding balance SOL.
func NewSimulateTrader(balance, fee decimal.Decimal, pricer Pricer, logger *zap.Logger) (*SimulateTrader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pricer == nil {
		return nil, errors.New("pricer is required for SimulateTrader")
	}
	if balance.IsNegative() || fee.IsNegative() {
		return nil, errors.New("paper balance and fee must not be negative")
	}

	trader := &SimulateTrader{
		logger:   logger,
		pricer:   pricer,
		slippage: DefaultVirtualSlippage,
		fee:      fee,
		wallet:   map[string]decimal.Decimal{quoteCurrency: balance},
		cost:     make(map[string]decimal.Decimal),
		realized: decimal.Zero,
	}
	logger.Info("simulate init",
		zap.String("balance", balance.String()),
		zap.String("fee", fee.String()),
		zap.String("virtual_slippage", trader.slippage.String()))

	return trader, nil
}

// Submit simulates a fill and returns a synthetic transaction id.
func (t *SimulateTrader) Submit(ctx context.Context, intent domain.TradeIntent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.NewExecutionError(domain.KindBroadcast, err)
	}

	price, ok := t.pricer.LastPrice(intent.TokenID)
	if !ok || !price.IsPositive() {
		return "", domain.NewExecutionError(domain.KindUpstreamAPI, errors.Errorf("no price observed for %s", intent.TokenID))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	txID := txPrefix + uuid.New().String()
	switch intent.Action {
	case domain.ActionBuy:
		return txID, t.buy(intent, price, txID)
	case domain.ActionSell:
		return txID, t.sell(intent, price, txID)
	default:
		return "", domain.NewExecutionError(domain.KindUpstreamAPI, errors.Errorf("unknown action: %s", intent.Action))
	}
}

func (t *SimulateTrader) buy(intent domain.TradeIntent, price decimal.Decimal, txID string) error {
	if !intent.QuoteDenominated() {
		return domain.NewExecutionError(domain.KindUpstreamAPI, errors.New("paper buys must be quote denominated"))
	}
	spend := intent.Amount.Add(t.fee)
	if t.wallet[quoteCurrency].LessThan(spend) {
		return domain.NewExecutionError(domain.KindOnchainRejection, errors.Errorf("insufficient paper balance %s for %s", t.wallet[quoteCurrency], spend))
	}

	fill := price.Mul(decimal.NewFromInt(1).Add(t.slippage))
	tokens := intent.Amount.Div(fill)

	t.wallet[quoteCurrency] = t.wallet[quoteCurrency].Sub(spend)
	t.wallet[intent.TokenID] = t.wallet[intent.TokenID].Add(tokens)
	t.cost[intent.TokenID] = t.cost[intent.TokenID].Add(spend)

	t.logger.Info("simulated buy",
		zap.String("token", intent.TokenID),
		zap.String("tx", txID),
		zap.String("price", fill.String()),
		zap.String("tokens", tokens.String()),
		zap.String("balance", t.wallet[quoteCurrency].String()))

	return nil
}

func (t *SimulateTrader) sell(intent domain.TradeIntent, price decimal.Decimal, txID string) error {
	holding := t.wallet[intent.TokenID]
	if !holding.IsPositive() {
		return domain.NewExecutionError(domain.KindOnchainRejection, errors.Errorf("no paper holdings of %s", intent.TokenID))
	}

	tokens := holding
	if !intent.QuoteDenominated() {
		tokens = holding.Mul(decimal.Min(intent.Amount, hundred)).Div(hundred)
	}
	fill := price.Mul(decimal.NewFromInt(1).Sub(t.slippage))
	proceeds := tokens.Mul(fill).Sub(t.fee)
	costShare := t.cost[intent.TokenID].Mul(tokens).Div(holding)
	pnl := proceeds.Sub(costShare)

	t.wallet[quoteCurrency] = t.wallet[quoteCurrency].Add(proceeds)
	t.wallet[intent.TokenID] = holding.Sub(tokens)
	t.cost[intent.TokenID] = t.cost[intent.TokenID].Sub(costShare)
	if !t.wallet[intent.TokenID].IsPositive() {
		delete(t.wallet, intent.TokenID)
		delete(t.cost, intent.TokenID)
	}
	t.realized = t.realized.Add(pnl)

	t.logger.Info("simulated sell",
		zap.String("token", intent.TokenID),
		zap.String("tx", txID),
		zap.String("price", fill.String()),
		zap.String("proceeds", proceeds.StringFixed(9)),
		zap.String("pnl", pnl.StringFixed(9)),
		zap.String("realized_pnl", t.realized.StringFixed(9)),
		zap.String("balance", t.wallet[quoteCurrency].StringFixed(9)))

	return nil
}

// Balance returns the paper SOL balance.
func (t *SimulateTrader) Balance(ctx context.Context) (decimal.Decimal, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.wallet[quoteCurrency], nil
}
