// Package gateway turns trade intents into confirmed or failed on-chain transactions.
package gateway

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
	"go.uber.org/zap"
)

type txBuilder interface {
	BuildTransaction(ctx context.Context, req domain.TradeRequest) ([]byte, error)
}

type txSigner interface {
	PublicKey() string
	Sign(raw []byte) ([]byte, error)
}

type ledger interface {
	Broadcast(ctx context.Context, signed []byte) (string, error)
	SignatureStatus(ctx context.Context, txID string) (domain.TxStatus, error)
}

// Config holds confirmation polling settings.
type Config struct {
	Params       domain.ExecutionParams
	PollInterval time.Duration
	PollAttempts int
}

// Gateway executes intents: build, sign, broadcast, confirm.
// It never retries; every failure is returned as a *domain.ExecutionError.
type Gateway struct {
	builder txBuilder
	signer  txSigner
	ledger  ledger
	cfg     Config
	clock   clockwork.Clock
	l       *zap.Logger
}

func NewGateway(builder txBuilder, signer txSigner, ledger ledger, cfg Config, clock clockwork.Clock, l *zap.Logger) (*Gateway, error) {
	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	if cfg.PollAttempts <= 0 {
		return nil, errors.New("poll attempts must be positive")
	}

	return &Gateway{builder: builder, signer: signer, ledger: ledger, cfg: cfg, clock: clock, l: l}, nil
}

// Submit executes intent and returns the confirmed transaction id.
func (g *Gateway) Submit(ctx context.Context, intent domain.TradeIntent) (string, error) {
	req := domain.NewTradeRequest(g.signer.PublicKey(), intent, g.cfg.Params)

	raw, err := g.builder.BuildTransaction(ctx, req)
	if err != nil {
		return "", domain.NewExecutionError(domain.KindUpstreamAPI, errors.Wrap(err, "build transaction"))
	}

	signed, err := g.signer.Sign(raw)
	if err != nil {
		// bytes from the construction API that do not decode are its failure
		return "", domain.NewExecutionError(domain.KindUpstreamAPI, errors.Wrap(err, "sign transaction locally"))
	}

	txID, err := g.ledger.Broadcast(ctx, signed)
	if err != nil {
		return "", domain.NewExecutionError(domain.KindBroadcast, errors.Wrap(err, "broadcast transaction"))
	}

	g.l.Info("transaction sent",
		zap.String("intent", intent.ID),
		zap.String("action", intent.Action.String()),
		zap.String("token", intent.TokenID),
		zap.String("amount", intent.AmountString()),
		zap.String("tx", txID))

	return txID, g.awaitConfirmation(ctx, txID)
}

func (g *Gateway) awaitConfirmation(ctx context.Context, txID string) error {
	for attempt := 1; attempt <= g.cfg.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return &domain.ExecutionError{
				Kind: domain.KindConfirmationTimeout,
				TxID: txID,
				Err:  errors.Wrap(ctx.Err(), "confirmation polling interrupted"),
			}
		case <-g.clock.After(g.cfg.PollInterval):
		}

		status, err := g.ledger.SignatureStatus(ctx, txID)
		if err != nil {
			g.l.Debug("signature status unavailable", zap.String("tx", txID), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		switch status.State {
		case domain.TxConfirmed:
			return nil
		case domain.TxFailed:
			return &domain.ExecutionError{
				Kind: domain.KindOnchainRejection,
				TxID: txID,
				Err:  errors.Errorf("transaction rejected: %s", status.Reason),
			}
		}
	}

	return &domain.ExecutionError{
		Kind: domain.KindConfirmationTimeout,
		TxID: txID,
		Err:  errors.Errorf("no definitive status after %d attempts", g.cfg.PollAttempts),
	}
}
