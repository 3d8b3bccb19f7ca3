package internal

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pumpsniper/config"
	"github.com/vadiminshakov/pumpsniper/internal/clients"
	"github.com/vadiminshakov/pumpsniper/internal/services/gateway"
	"github.com/vadiminshakov/pumpsniper/internal/services/trader"
)

const tradeRequestTimeout = 10 * time.Second

type priceSource interface {
	LastPrice(tokenID string) (decimal.Decimal, bool)
}

// serviceProvider builds the mode specific execution services.
type serviceProvider interface {
	Executor() Executor
	Balance() balanceSource
}

// newServiceProvider creates a provider for the configured mode.
// This is the single point of truth for dispatching between live and paper execution.
func newServiceProvider(cfg config.Config, prices priceSource, clock clockwork.Clock, logger *zap.Logger) (serviceProvider, error) {
	switch cfg.Mode {
	case config.ModeLive:
		return newLiveProvider(cfg, clock, logger)
	case config.ModePaper:
		return newPaperProvider(cfg, prices, logger)
	default:
		return nil, fmt.Errorf("unsupported mode: %s", cfg.Mode)
	}
}

type liveProvider struct {
	wallet  *clients.SolanaClient
	gateway *gateway.Gateway
}

func newLiveProvider(cfg config.Config, clock clockwork.Clock, logger *zap.Logger) (*liveProvider, error) {
	wallet, err := clients.NewSolanaClient(cfg.RPCURL, cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	builder := clients.NewPumpPortalClient(cfg.TradeURL, tradeRequestTimeout)

	gw, err := gateway.NewGateway(builder, wallet, wallet, gateway.Config{
		Params:       cfg.Execution,
		PollInterval: cfg.PollInterval,
		PollAttempts: cfg.PollAttempts,
	}, clock, logger.Named("gateway"))
	if err != nil {
		return nil, err
	}
	logger.Info("live execution", zap.String("wallet", wallet.PublicKey()))

	return &liveProvider{wallet: wallet, gateway: gw}, nil
}

func (p *liveProvider) Executor() Executor {
	return p.gateway
}

func (p *liveProvider) Balance() balanceSource {
	return p.wallet
}

type paperProvider struct {
	trader *trader.SimulateTrader
}

func newPaperProvider(cfg config.Config, prices priceSource, logger *zap.Logger) (*paperProvider, error) {
	t, err := trader.NewSimulateTrader(cfg.PaperBalance, cfg.PaperFee, prices, logger.Named("paper"))
	if err != nil {
		return nil, err
	}

	return &paperProvider{trader: t}, nil
}

func (p *paperProvider) Executor() Executor {
	return p.trader
}

func (p *paperProvider) Balance() balanceSource {
	return p.trader
}
