package internal

import (
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pumpsniper/config"
	"github.com/vadiminshakov/pumpsniper/internal/services/feed"
	"github.com/vadiminshakov/pumpsniper/internal/services/gate"
	"github.com/vadiminshakov/pumpsniper/internal/services/monitor"
	"github.com/vadiminshakov/pumpsniper/internal/services/scorer"
	"github.com/vadiminshakov/pumpsniper/internal/storage/lifecycle"
	"github.com/vadiminshakov/pumpsniper/internal/web"
)

// feedStream adapts the feed client to EventStream.
type feedStream struct {
	*feed.Client
}

func (s feedStream) Subscribe(tokenID string) (Subscription, error) {
	sub, err := s.Client.Subscribe(tokenID)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// NewSniperBotFromConfig wires the stream, scorer, monitor, gate, executor,
// journal and optional web server described by cfg.
func NewSniperBotFromConfig(cfg config.Config, logger *zap.Logger) (*SniperBot, error) {
	clock := clockwork.NewRealClock()

	stream := feed.NewClient(feed.Config{URL: cfg.FeedURL, BufferSize: cfg.FeedBuffer}, clock, logger.Named("feed"))

	windowScorer, err := scorer.NewWindowScorer(cfg.Filters, cfg.Window, clock, logger.Named("scorer"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scorer")
	}
	positionMonitor, err := monitor.NewPositionMonitor(cfg.Exit, cfg.MonitorTick, clock, logger.Named("monitor"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create position monitor")
	}
	tokenGate, err := gate.New(cfg.Gate)
	if err != nil {
		return nil, err
	}

	provider, err := newServiceProvider(cfg, stream, clock, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create execution services")
	}

	journal, err := lifecycle.NewWALStore(cfg.JournalDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open lifecycle journal")
	}
	logger.Info("lifecycle journal opened", zap.String("dir", cfg.JournalDir), zap.Uint64("index", journal.CurrentIndex()))

	registry := NewRegistry(clock)
	deps := Deps{
		Stream:   feedStream{stream},
		Scorer:   windowScorer,
		Monitor:  positionMonitor,
		Executor: provider.Executor(),
		Balance:  provider.Balance(),
		Gate:     tokenGate,
		Journal:  journal,
		Registry: registry,
		Clock:    clock,
	}
	if cfg.WebAddr != "" {
		deps.Web = web.NewServer(cfg.WebAddr, journal, registry, logger.Named("web")).Start
	}

	bot, err := NewSniperBot(deps, Settings{
		Mode:                cfg.Mode,
		BuyAmount:           cfg.BuyAmount,
		PriorityFee:         cfg.Execution.PriorityFee,
		ShutdownSellTimeout: cfg.ShutdownSellTimeout,
		SeenTTL:             cfg.SeenTTL,
		HeartbeatInterval:   cfg.HeartbeatInterval,
	}, logger)
	if err != nil {
		_ = journal.Close()
		return nil, err
	}

	return bot, nil
}
