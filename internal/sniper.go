package internal

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
	"github.com/vadiminshakov/pumpsniper/internal/services/gate"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// balanceReserve is kept aside for rent and network fees on top of buy amount and priority fee.
var balanceReserve = decimal.RequireFromString("0.003")

// Subscription is a per-token trade stream.
type Subscription interface {
	Events() <-chan domain.TradeEvent
	Err() error
	Drain() int
	// Dropped counts trades discarded because the consumer fell behind.
	Dropped() int64
	Close()
}

// EventStream is the inbound creation/trade stream.
type EventStream interface {
	Run(ctx context.Context) error
	Creations() <-chan domain.CreationEvent
	Subscribe(tokenID string) (Subscription, error)
	Subscriptions() int
}

type windowScorer interface {
	Evaluate(ctx context.Context, obs *domain.TokenObservation, events <-chan domain.TradeEvent) (domain.ScoreResult, error)
}

type positionMonitor interface {
	Watch(ctx context.Context, pos *domain.Position, events <-chan domain.TradeEvent) (domain.ExitReason, error)
}

// Executor submits trade intents. Errors are *domain.ExecutionError.
type Executor interface {
	Submit(ctx context.Context, intent domain.TradeIntent) (string, error)
}

type balanceSource interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
}

type lifecycleJournal interface {
	Save(event domain.LifecycleEvent) error
}

// Settings are the orchestration parameters of the bot.
type Settings struct {
	Mode        string
	BuyAmount   decimal.Decimal
	PriorityFee decimal.Decimal
	// ShutdownSellTimeout bounds the exit attempt for positions open at shutdown. Zero skips it.
	ShutdownSellTimeout time.Duration
	SeenTTL             time.Duration
	HeartbeatInterval   time.Duration
}

// Deps are the collaborators of the bot. Journal and Web are optional.
type Deps struct {
	Stream   EventStream
	Scorer   windowScorer
	Monitor  positionMonitor
	Executor Executor
	Balance  balanceSource
	Gate     gate.Gate
	Journal  lifecycleJournal
	Web      func(ctx context.Context) error
	Registry *Registry
	Clock    clockwork.Clock
}

// SniperBot runs one pipeline per admitted token:
// score, buy, monitor, sell.
type SniperBot struct {
	settings Settings
	deps     Deps
	registry *Registry
	tasks    *TaskRegistry
	clock    clockwork.Clock
	l        *zap.Logger
}

// NewSniperBot validates settings and wires the bot.
func NewSniperBot(deps Deps, settings Settings, l *zap.Logger) (*SniperBot, error) {
	if deps.Stream == nil || deps.Scorer == nil || deps.Monitor == nil || deps.Executor == nil || deps.Gate == nil {
		return nil, errors.New("stream, scorer, monitor, executor and gate are required")
	}
	if !settings.BuyAmount.IsPositive() {
		return nil, errors.New("buy amount must be greater than zero")
	}
	if settings.HeartbeatInterval <= 0 {
		settings.HeartbeatInterval = time.Minute
	}
	if settings.SeenTTL <= 0 {
		settings.SeenTTL = time.Hour
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry(deps.Clock)
	}

	return &SniperBot{
		settings: settings,
		deps:     deps,
		registry: deps.Registry,
		tasks:    NewTaskRegistry(l),
		clock:    deps.Clock,
		l:        l,
	}, nil
}

// Registry exposes token snapshots.
func (b *SniperBot) Registry() *Registry {
	return b.registry
}

// Close releases the lifecycle journal.
func (b *SniperBot) Close() error {
	if c, ok := b.deps.Journal.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// Initialize checks the wallet balance. A low or unknown balance is reported, not fatal.
func (b *SniperBot) Initialize(ctx context.Context) error {
	if b.deps.Balance == nil {
		return nil
	}

	balance, err := b.deps.Balance.Balance(ctx)
	if err != nil {
		b.l.Warn("wallet balance unavailable", zap.Error(err))
		return nil
	}

	required := b.settings.BuyAmount.Add(b.settings.PriorityFee).Add(balanceReserve)
	if balance.LessThan(required) {
		b.l.Warn("wallet balance below one trade",
			zap.String("balance", balance.String()),
			zap.String("required", required.String()))
		return nil
	}

	b.l.Info("wallet balance",
		zap.String("mode", b.settings.Mode),
		zap.String("balance", balance.String()),
		zap.String("buy_amount", b.settings.BuyAmount.String()))

	return nil
}

// Run blocks until ctx ends or the event stream fails for good.
// Positions still open at that point get one bounded exit attempt before Run returns.
func (b *SniperBot) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.deps.Stream.Run(gctx)
	})
	g.Go(func() error {
		return b.dispatch(gctx)
	})
	g.Go(func() error {
		return b.housekeeping(gctx)
	})
	if b.deps.Web != nil {
		g.Go(func() error {
			return b.deps.Web(gctx)
		})
	}

	b.l.Info("sniper started", zap.String("mode", b.settings.Mode), zap.String("gate", string(b.deps.Gate.Mode())))
	err := g.Wait()

	b.tasks.Wait()
	b.l.Info("sniper stopped", zap.Error(err))

	return err
}

func (b *SniperBot) dispatch(ctx context.Context) error {
	creations := b.deps.Stream.Creations()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-creations:
			if !ok {
				return nil
			}
			b.onCreation(ctx, ev)
		}
	}
}

func (b *SniperBot) onCreation(ctx context.Context, ev domain.CreationEvent) {
	token := ev.TokenID
	if !b.registry.Register(token, ev.ReceivedAt) {
		return
	}
	b.l.Info("token discovered", zap.String("token", token), zap.String("source", ev.Source), zap.String("symbol", ev.Symbol))

	if !b.deps.Gate.Acquire(token) {
		b.l.Debug("gate closed, token ignored", zap.String("token", token))
		return
	}

	sub, err := b.deps.Stream.Subscribe(token)
	if err != nil {
		b.deps.Gate.Release(token)
		b.l.Error("subscribe token trades", zap.String("token", token), zap.Error(err))
		return
	}

	if !b.tasks.Spawn(ctx, token, func(ctx context.Context) { b.pipeline(ctx, ev, sub) }) {
		sub.Close()
		b.deps.Gate.Release(token)
	}
}

// pipeline drives one token from SCORING to a terminal state.
func (b *SniperBot) pipeline(ctx context.Context, ev domain.CreationEvent, sub Subscription) {
	token := ev.TokenID
	defer b.deps.Gate.Release(token)
	defer sub.Close()

	b.transition(token, domain.StateScoring, nil, nil)

	firstSeen := ev.ReceivedAt
	if firstSeen.IsZero() {
		firstSeen = b.clock.Now()
	}
	obs := domain.NewTokenObservation(token, firstSeen)

	result, err := b.deps.Scorer.Evaluate(ctx, obs, sub.Events())
	scoreFields := map[string]string{
		"trades": strconv.Itoa(result.TradeCount),
		"volume": result.Volume.String(),
		"ratio":  result.Ratio.StringFixed(4),
	}
	if result.Verdict != domain.VerdictPass {
		if err != nil {
			scoreFields["error"] = err.Error()
		}
		b.transition(token, domain.StateExpired, scoreFields, nil)
		return
	}
	scoreFields["signal_price"] = result.EntryPrice.String()
	b.transition(token, domain.StateBuying, scoreFields, nil)

	pos, ok := b.buy(ctx, token)
	if !ok {
		return
	}

	b.sell(ctx, pos, b.watch(ctx, pos, sub))
}

func (b *SniperBot) buy(ctx context.Context, token string) (*domain.Position, bool) {
	intent, err := domain.NewBuyIntent(token, b.settings.BuyAmount)
	if err != nil {
		b.transition(token, domain.StateBuyFailed, map[string]string{"error": err.Error()}, nil)
		return nil, false
	}

	txID, err := b.deps.Executor.Submit(ctx, intent)
	if err != nil {
		detail := failureDetail(txID, err)
		if kind, _ := domain.KindOf(err); kind == domain.KindConfirmationTimeout {
			b.l.Warn("buy outcome unknown, treating as failed", zap.String("token", token), zap.String("tx", txID))
		}
		b.transition(token, domain.StateBuyFailed, detail, nil)
		return nil, false
	}

	pos, err := domain.NewPosition(token, b.settings.BuyAmount, txID, b.clock.Now())
	if err != nil {
		// the buy confirmed, so the holding still has to be exited
		b.l.Error("open position", zap.String("token", token), zap.Error(err))
		pos = &domain.Position{TokenID: token, Spent: b.settings.BuyAmount, BuyTxID: txID, EntryTime: b.clock.Now(), Status: domain.PositionOpen}
	}

	b.transition(token, domain.StatePositionOpen, map[string]string{"buy_tx": txID}, func(s *domain.TokenSnapshot) {
		s.BuyTxID = txID
	})

	return pos, true
}

// watch returns the exit reason. Events buffered while buying are discarded first,
// so the entry price is the first trade seen after confirmation.
func (b *SniperBot) watch(ctx context.Context, pos *domain.Position, sub Subscription) domain.ExitReason {
	if n := sub.Drain(); n > 0 {
		b.l.Debug("discarded pre-entry trades", zap.String("token", pos.TokenID), zap.Int("count", n))
	}

	reason, err := b.deps.Monitor.Watch(ctx, pos, sub.Events())
	if err != nil {
		if streamErr := sub.Err(); streamErr != nil {
			err = streamErr
		}
		b.l.Error("position monitor stopped, exiting position",
			zap.String("token", pos.TokenID),
			zap.String("entry_price", pos.EntryPrice.String()),
			zap.Error(err))
	}
	if n := sub.Dropped(); n > 0 {
		b.l.Warn("trades dropped while monitoring",
			zap.String("token", pos.TokenID),
			zap.Int64("dropped", n),
			zap.String("exit_reason", reason.String()))
	}

	return reason
}

// sell makes exactly one full-exit attempt. Every outcome is terminal.
func (b *SniperBot) sell(ctx context.Context, pos *domain.Position, reason domain.ExitReason) {
	token := pos.TokenID
	if err := pos.Close(reason, b.clock.Now()); err != nil {
		b.l.Error("position closed twice", zap.String("token", token), zap.Error(err))
		return
	}

	sellCtx, cancel, ok := b.exitContext(ctx)
	defer cancel()
	if !ok {
		b.l.Warn("unresolved position at shutdown",
			zap.String("token", token),
			zap.String("buy_tx", pos.BuyTxID),
			zap.String("entry_price", pos.EntryPrice.String()))
		b.transition(token, domain.StateSellFailed, map[string]string{"exit_reason": reason.String(), "error": "shutdown"}, nil)
		return
	}
	if ctx.Err() != nil {
		b.l.Warn("unresolved position at shutdown, attempting exit",
			zap.String("token", token),
			zap.String("buy_tx", pos.BuyTxID),
			zap.Duration("timeout", b.settings.ShutdownSellTimeout))
	}

	txID, err := b.deps.Executor.Submit(sellCtx, domain.NewFullExitIntent(token))
	mutate := func(s *domain.TokenSnapshot) {
		s.ExitReason = reason.String()
		s.EntryPrice = pos.EntryPrice.String()
		s.SellTxID = txID
	}
	if err != nil {
		detail := failureDetail(txID, err)
		detail["exit_reason"] = reason.String()
		if kind, _ := domain.KindOf(err); kind == domain.KindConfirmationTimeout {
			b.l.Error("unresolved position: sell outcome unknown",
				zap.String("token", token),
				zap.String("tx", txID),
				zap.String("buy_tx", pos.BuyTxID),
				zap.Bool("unresolved_position", true))
		}
		b.transition(token, domain.StateSellFailed, detail, mutate)
		return
	}

	b.transition(token, domain.StateSold, map[string]string{
		"exit_reason": reason.String(),
		"sell_tx":     txID,
		"held":        b.clock.Since(pos.EntryTime).Round(time.Millisecond).String(),
	}, mutate)
}

// exitContext returns ctx while it is alive. After shutdown it returns a detached
// context bounded by ShutdownSellTimeout, or false when shutdown exits are disabled.
func (b *SniperBot) exitContext(ctx context.Context) (context.Context, context.CancelFunc, bool) {
	if ctx.Err() == nil {
		return ctx, func() {}, true
	}
	if b.settings.ShutdownSellTimeout <= 0 {
		return nil, func() {}, false
	}
	sellCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.settings.ShutdownSellTimeout)

	return sellCtx, cancel, true
}

// transition records a state change in the registry, the journal and the log.
func (b *SniperBot) transition(token string, to domain.TokenState, detail map[string]string, mutate func(*domain.TokenSnapshot)) {
	from, err := b.registry.Transition(token, to, mutate)
	if err != nil {
		b.l.Error("token state transition rejected", zap.String("token", token), zap.Error(err))
		return
	}

	fields := []zap.Field{zap.String("token", token), zap.String("from", string(from)), zap.String("to", string(to))}
	for k, v := range detail {
		fields = append(fields, zap.String(k, v))
	}
	b.l.Info("token state", fields...)

	if b.deps.Journal == nil {
		return
	}
	if err := b.deps.Journal.Save(domain.LifecycleEvent{TokenID: token, From: from, To: to, At: b.clock.Now(), Detail: detail}); err != nil {
		b.l.Warn("journal lifecycle event", zap.String("token", token), zap.Error(err))
	}
}

func (b *SniperBot) housekeeping(ctx context.Context) error {
	ticker := b.clock.NewTicker(b.settings.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			pruned := b.registry.Prune(b.settings.SeenTTL)
			tracked, open := b.registry.Counts()
			b.l.Info("heartbeat",
				zap.Int("tracked", tracked),
				zap.Int("active_tasks", b.tasks.Active()),
				zap.Int("subscriptions", b.deps.Stream.Subscriptions()),
				zap.Int("open_positions", open),
				zap.Int("pruned", pruned))
		}
	}
}

func failureDetail(txID string, err error) map[string]string {
	detail := map[string]string{"error": err.Error()}
	if kind, ok := domain.KindOf(err); ok {
		detail["kind"] = kind.String()
	}
	if txID != "" {
		detail["tx"] = txID
	}

	return detail
}
