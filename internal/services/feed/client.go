// Package feed adapts the PumpPortal websocket data stream to typed creation and trade events.
package feed

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
	"github.com/vadiminshakov/pumpsniper/pkg/retrier"
	"go.uber.org/zap"
)

const (
	DefaultURL = "wss://pumpportal.fun/api/data"

	defaultBufferSize    = 256
	defaultIdleTimeout   = 60 * time.Second
	defaultWriteTimeout  = 5 * time.Second
	defaultHandshakeWait = 10 * time.Second

	methodSubscribeNewToken = "subscribeNewToken"
	methodSubscribeTrades   = "subscribeTokenTrade"
	methodUnsubscribeTrades = "unsubscribeTokenTrade"
)

var (
	errNotConnected = errors.New("event stream not connected")
	errSessionEnded = errors.New("event stream session ended")
)

type request struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// Config configures the stream client.
type Config struct {
	URL string
	// BufferSize is the capacity of the creation channel and of every trade subscription.
	BufferSize int
	// IdleTimeout forces a reconnect when no frame arrives for this long.
	IdleTimeout time.Duration
	// Reconnect controls backoff between connection attempts. When it gives up, the stream fails.
	Reconnect *retrier.Retrier
}

// Client keeps one websocket connection, reconnecting on failure and
// re-sending every active subscription after each reconnect.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	clock  clockwork.Clock
	l      *zap.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu        sync.Mutex
	subs      map[string]*Subscription
	lastPrice map[string]decimal.Decimal
	failed    error

	creations        chan domain.CreationEvent
	droppedCreations atomic.Int64
	malformed        atomic.Int64
}

func NewClient(cfg Config, clock clockwork.Clock, l *zap.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Reconnect == nil {
		cfg.Reconnect = retrier.New(
			retrier.WithInitialInterval(5*time.Second),
			retrier.WithMaxRetries(10),
			retrier.WithClock(clock),
			retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
				l.Warn("event stream reconnect scheduled",
					zap.Int("attempt", attempt),
					zap.Duration("wait", wait),
					zap.Error(err))
			}),
		)
	}

	return &Client{
		cfg:       cfg,
		dialer:    &websocket.Dialer{HandshakeTimeout: defaultHandshakeWait, Proxy: http.ProxyFromEnvironment},
		clock:     clock,
		l:         l,
		subs:      make(map[string]*Subscription),
		lastPrice: make(map[string]decimal.Decimal),
		creations: make(chan domain.CreationEvent, cfg.BufferSize),
	}
}

// Creations delivers creation events. It is closed when Run returns.
func (c *Client) Creations() <-chan domain.CreationEvent {
	return c.creations
}

// Run connects and reads until ctx ends or reconnecting gives up.
// On give-up every subscription is closed with the stream error.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.creations)

	for {
		err := c.cfg.Reconnect.Do(ctx, c.session)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, errSessionEnded) {
			// a healthy session resets the backoff
			continue
		}
		err = errors.Wrap(err, "event stream unavailable")
		c.fail(err)

		return err
	}
}

// session dials once and reads until the connection drops. A connection that
// closes before delivering a single event counts as a failed attempt, so a
// server that accepts and hangs up is retried with backoff.
func (c *Client) session(ctx context.Context) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}

	delivered, err := c.readLoop(ctx, conn)
	if ctx.Err() != nil {
		return retrier.Permanent(ctx.Err())
	}
	if delivered > 0 {
		c.l.Warn("event stream disconnected, reconnecting", zap.Int("events", delivered), zap.Error(err))
		return retrier.Permanent(errSessionEnded)
	}

	return errors.Wrap(err, "event stream closed before delivering events")
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retrier.Permanent(errors.Wrapf(err, "handshake rejected with status %d", resp.StatusCode))
		}
		return nil, errors.Wrap(err, "dial event stream")
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	if err := c.send(request{Method: methodSubscribeNewToken}); err != nil {
		c.dropConn(conn)
		return nil, errors.Wrap(err, "subscribe new tokens")
	}

	keys := c.activeKeys()
	if len(keys) > 0 {
		if err := c.send(request{Method: methodSubscribeTrades, Keys: keys}); err != nil {
			c.dropConn(conn)
			return nil, errors.Wrap(err, "resubscribe token trades")
		}
	}

	c.l.Info("event stream connected", zap.String("url", c.cfg.URL), zap.Int("resubscribed", len(keys)))

	return conn, nil
}

// readLoop returns the number of creation and trade frames handled before the connection dropped.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) (int, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer c.dropConn(conn)

	delivered := 0
	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout)); err != nil {
			return delivered, err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return delivered, err
		}
		if c.handle(data, c.clock.Now()) {
			delivered++
		}
	}
}

// handle reports whether data carried a creation or a trade.
func (c *Client) handle(data []byte, at time.Time) bool {
	frame, err := Normalize(data, at)
	if err != nil {
		c.malformed.Add(1)
		c.l.Debug("skip malformed frame", zap.Error(err))
		return false
	}

	switch {
	case frame.Creation != nil:
		c.announce(*frame.Creation)
	case frame.Trade != nil:
		c.route(*frame.Trade)
	default:
		return false
	}

	return true
}

func (c *Client) route(ev domain.TradeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	price, _ := ev.Price()
	sub, ok := c.subs[ev.TokenID]
	if !ok {
		// a trade can reach us before the creation frame does
		c.announce(domain.CreationEvent{TokenID: ev.TokenID, Source: "trade", ReceivedAt: ev.ReceivedAt})
		return
	}
	c.lastPrice[ev.TokenID] = price
	sub.deliver(ev)
}

func (c *Client) announce(ev domain.CreationEvent) {
	select {
	case c.creations <- ev:
	default:
		if n := c.droppedCreations.Add(1); n%100 == 1 {
			c.l.Warn("creation buffer full, dropping events", zap.Int64("dropped", n))
		}
	}
}

// Subscribe starts routing trades for tokenID. A token has at most one subscription.
func (c *Client) Subscribe(tokenID string) (*Subscription, error) {
	c.mu.Lock()
	if c.failed != nil {
		c.mu.Unlock()
		return nil, c.failed
	}
	if _, ok := c.subs[tokenID]; ok {
		c.mu.Unlock()
		return nil, errors.Errorf("token %s already subscribed", tokenID)
	}
	sub := &Subscription{
		tokenID: tokenID,
		events:  make(chan domain.TradeEvent, c.cfg.BufferSize),
		client:  c,
	}
	c.subs[tokenID] = sub
	c.mu.Unlock()

	// when offline the key is sent on reconnect
	if err := c.send(request{Method: methodSubscribeTrades, Keys: []string{tokenID}}); err != nil && !errors.Is(err, errNotConnected) {
		c.l.Warn("subscribe token trades", zap.String("token", tokenID), zap.Error(err))
	}

	return sub, nil
}

// LastPrice returns the latest routed trade price for a subscribed token.
func (c *Client) LastPrice(tokenID string) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	price, ok := c.lastPrice[tokenID]

	return price, ok
}

// Subscriptions returns the number of active trade subscriptions.
func (c *Client) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.subs)
}

func (c *Client) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	if c.subs[sub.tokenID] == sub {
		delete(c.subs, sub.tokenID)
		delete(c.lastPrice, sub.tokenID)
	}
	sub.close(nil)
	c.mu.Unlock()

	if err := c.send(request{Method: methodUnsubscribeTrades, Keys: []string{sub.tokenID}}); err != nil && !errors.Is(err, errNotConnected) {
		c.l.Debug("unsubscribe token trades", zap.String("token", sub.tokenID), zap.Error(err))
	}
}

// fail closes every subscription with err and rejects new ones.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = err
	for token, sub := range c.subs {
		sub.close(err)
		delete(c.subs, token)
	}
}

func (c *Client) activeKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.subs))
	for token := range c.subs {
		keys = append(keys, token)
	}

	return keys
}

func (c *Client) send(req request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return errNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return err
	}

	return c.conn.WriteJSON(req)
}

func (c *Client) dropConn(conn *websocket.Conn) {
	c.writeMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.writeMu.Unlock()
	_ = conn.Close()
}
