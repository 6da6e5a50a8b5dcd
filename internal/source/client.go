package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LeJamon/xrplhist/internal/ledger"
)

// Client is a websocket Source with automatic reconnection. Requests are
// correlated by id over a single connection; the ledger stream fans out to
// every active subscriber.
type Client struct {
	cfg    Config
	log    *zap.Logger
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]chan wsMessage
	subs    map[uint64]chan ClosedLedger
	nextID  uint64
	nextSub uint64
	closed  bool

	wmu sync.Mutex // serializes writes to conn
}

// wsMessage is the envelope of every message the server sends: command
// responses (correlated by id) and stream notifications (typed).
type wsMessage struct {
	ID     uint64          `json:"id,omitempty"`
	Type   string          `json:"type,omitempty"`
	Status string          `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`

	// ledgerClosed stream fields.
	LedgerIndex uint32 `json:"ledger_index,omitempty"`
	LedgerHash  string `json:"ledger_hash,omitempty"`
	LedgerTime  uint32 `json:"ledger_time,omitempty"`
	TxnCount    int    `json:"txn_count,omitempty"`
}

// NewClient creates a websocket source for the configured endpoint. The
// connection is established lazily on first use.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg: cfg,
		log: log.Named("source"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		pending: make(map[uint64]chan wsMessage),
		subs:    make(map[uint64]chan ClosedLedger),
	}
}

// connectLocked dials the endpoint with capped exponential backoff. Caller
// holds c.mu.
func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	if c.closed {
		return ErrClosed
	}

	backoff := c.cfg.InitialBackoff
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
		if err == nil {
			c.conn = conn
			c.log.Info("connected", zap.String("url", c.cfg.URL))
			go c.readLoop(conn)
			if len(c.subs) > 0 {
				// Reestablish the server-side stream after a reconnect.
				go c.sendSubscribe()
			}
			return nil
		}

		c.log.Warn("connect failed, backing off",
			zap.String("url", c.cfg.URL),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		c.mu.Unlock()
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			c.mu.Lock()
			return ctx.Err()
		}
		c.mu.Lock()
		if c.closed {
			return ErrClosed
		}
		if c.conn != nil {
			return nil
		}

		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

// readLoop dispatches messages from one connection until it fails, then
// tears the connection down so the next request redials.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.dropConn(conn, err)
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("unparseable message", zap.Error(err))
			continue
		}

		switch {
		case msg.ID != 0:
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
		case msg.Type == "ledgerClosed":
			c.publish(msg)
		}
	}
}

// dropConn invalidates a failed connection and fails its in-flight
// requests.
func (c *Client) dropConn(conn *websocket.Conn, cause error) {
	conn.Close()

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending := c.pending
	c.pending = make(map[uint64]chan wsMessage)
	closed := c.closed
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	if !closed {
		c.log.Warn("disconnected", zap.String("url", c.cfg.URL), zap.Error(cause))
	}
}

// publish fans a closed-ledger notification out to all subscribers. A slow
// subscriber's notification is dropped; it can always fetch the ledger by
// index later.
func (c *Client) publish(msg wsMessage) {
	note := ClosedLedger{
		Index:   msg.LedgerIndex,
		Time:    msg.LedgerTime,
		TxCount: msg.TxnCount,
	}
	if hash, err := hashFromHex(msg.LedgerHash); err == nil {
		note.Hash = hash
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.subs {
		select {
		case ch <- note:
		default:
			c.log.Warn("subscriber lagging, dropping notification",
				zap.Uint64("subscriber", id),
				zap.Uint32("ledger_index", note.Index))
		}
	}
}

// request sends one command and waits for its correlated response.
func (c *Client) request(ctx context.Context, command string, params map[string]any) (wsMessage, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	c.mu.Lock()
	if err := c.connectLocked(ctx); err != nil {
		c.mu.Unlock()
		return wsMessage{}, err
	}
	c.nextID++
	id := c.nextID
	ch := make(chan wsMessage, 1)
	c.pending[id] = ch
	conn := c.conn
	c.mu.Unlock()

	payload := map[string]any{"id": id, "command": command}
	for k, v := range params {
		payload[k] = v
	}

	c.wmu.Lock()
	err := conn.WriteJSON(payload)
	c.wmu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return wsMessage{}, fmt.Errorf("write %s: %w", command, err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return wsMessage{}, fmt.Errorf("%s: connection lost", command)
		}
		return msg, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return wsMessage{}, ctx.Err()
	}
}

// sendSubscribe asks the server for the ledger stream.
func (c *Client) sendSubscribe() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()
	if _, err := c.request(ctx, "subscribe", map[string]any{
		"streams": []string{"ledger"},
	}); err != nil {
		c.log.Warn("ledger stream subscription failed", zap.Error(err))
	}
}

// SubscribeClosedLedgers streams closed-ledger notifications until the
// context is done.
func (c *Client) SubscribeClosedLedgers(ctx context.Context) (<-chan ClosedLedger, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.nextSub++
	id := c.nextSub
	ch := make(chan ClosedLedger, 64)
	first := len(c.subs) == 0
	c.subs[id] = ch
	c.mu.Unlock()

	if first {
		if _, err := c.request(ctx, "subscribe", map[string]any{
			"streams": []string{"ledger"},
		}); err != nil {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			return nil, err
		}
	}

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
		c.mu.Unlock()
	}()

	return ch, nil
}

// FetchLedger retrieves one ledger. A response without the closed flag is
// treated as not yet final and re-fetched after a short fixed delay.
func (c *Client) FetchLedger(ctx context.Context, id LedgerID, opts FetchOptions) (*ledger.Ledger, error) {
	params := map[string]any{
		"transactions": opts.IncludeTransactions,
		"expand":       opts.Expand,
	}
	switch {
	case id.validated:
		params["ledger_index"] = "validated"
	case id.hash != "":
		params["ledger_hash"] = id.hash
	default:
		params["ledger_index"] = id.index
	}

	for {
		msg, err := c.request(ctx, "ledger", params)
		if err != nil {
			return nil, err
		}
		if msg.Status != "success" {
			if msg.Error == "lgrNotFound" {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("ledger %s: server error %q", id, msg.Error)
		}

		l, closed, err := parseLedgerResult(msg.Result)
		if err != nil {
			return nil, fmt.Errorf("ledger %s: %w", id, err)
		}
		if closed {
			return l, nil
		}

		c.log.Debug("ledger not yet closed, refetching",
			zap.String("ledger", id.String()),
			zap.Duration("delay", c.cfg.NotClosedRetry))
		select {
		case <-time.After(c.cfg.NotClosedRetry):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close tears down the connection and all subscriptions.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	subs := c.subs
	c.subs = make(map[uint64]chan ClosedLedger)
	c.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
