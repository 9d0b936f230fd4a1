package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"smc-lab/internal/domain"
)

// WSConfig configures WebSocket feed behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// OnReconnect is called after each successful reconnect.
	OnReconnect func()
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// wsSubscribe is the subscription request sent to the feed server.
type wsSubscribe struct {
	Op     string `json:"op"`
	Symbol string `json:"symbol"`
}

// wsBar is one closed bar pushed by the feed server.
type wsBar struct {
	Symbol      string  `json:"symbol"`
	TimestampMs int64   `json:"timestamp_ms"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
}

// WSFeed streams closed bars for one symbol over a WebSocket
// connection, reconnecting with exponential backoff. Bars repeated by
// the server after a reconnect are dropped by timestamp.
type WSFeed struct {
	endpoint string
	config   WSConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	symbolMu sync.RWMutex
	symbol   string

	barsMu sync.Mutex
	bars   chan domain.Bar
	lastTs int64

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSFeed creates a feed and connects to the endpoint.
func NewWSFeed(ctx context.Context, endpoint string, config *WSConfig) (*WSFeed, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	f := &WSFeed{
		endpoint: endpoint,
		config:   cfg,
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// connect establishes the WebSocket connection.
func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

// Subscribe requests the bar stream of one symbol. A feed carries a
// single subscription; the returned channel closes when the feed does.
func (f *WSFeed) Subscribe(symbol string) (<-chan domain.Bar, error) {
	if f.closed.Load() {
		return nil, fmt.Errorf("feed closed")
	}
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	f.symbolMu.Lock()
	if f.symbol != "" {
		f.symbolMu.Unlock()
		return nil, fmt.Errorf("already subscribed to %s", f.symbol)
	}
	f.symbol = symbol
	f.symbolMu.Unlock()

	if err := f.writeSubscribe(symbol); err != nil {
		return nil, err
	}

	// Blocking send keeps bar order; the buffer absorbs bursts.
	f.barsMu.Lock()
	f.bars = make(chan domain.Bar, 1024)
	ch := f.bars
	f.barsMu.Unlock()
	return ch, nil
}

func (f *WSFeed) writeSubscribe(symbol string) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn == nil {
		return fmt.Errorf("not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	if err := f.conn.WriteJSON(wsSubscribe{Op: "subscribe", Symbol: symbol}); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the connection and the bar channel.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()

	f.barsMu.Lock()
	if f.bars != nil {
		close(f.bars)
		f.bars = nil
	}
	f.barsMu.Unlock()
	return nil
}

// readLoop reads messages and dispatches bars, reconnecting on error
// with exponential backoff.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = f.config.ReconnectDelay

		f.handleMessage(message)
	}
}

// reconnect dials again after a delay and renews the subscription.
func (f *WSFeed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		// Will retry on the next read error.
		return
	}

	f.symbolMu.RLock()
	symbol := f.symbol
	f.symbolMu.RUnlock()
	if symbol != "" {
		f.writeSubscribe(symbol)
	}

	if f.config.OnReconnect != nil {
		f.config.OnReconnect()
	}
}

// handleMessage parses one bar and forwards it. Bars for other
// symbols and bars at or before the last seen timestamp are dropped.
func (f *WSFeed) handleMessage(message []byte) {
	var wb wsBar
	if err := json.Unmarshal(message, &wb); err != nil || wb.TimestampMs == 0 {
		return
	}

	f.symbolMu.RLock()
	symbol := f.symbol
	f.symbolMu.RUnlock()
	if wb.Symbol != symbol {
		return
	}

	f.barsMu.Lock()
	ch := f.bars
	last := f.lastTs
	f.barsMu.Unlock()
	if ch == nil || wb.TimestampMs <= last {
		return
	}

	bar := domain.Bar{
		TimestampMs: wb.TimestampMs,
		Open:        wb.Open,
		High:        wb.High,
		Low:         wb.Low,
		Close:       wb.Close,
	}

	select {
	case ch <- bar:
		f.barsMu.Lock()
		f.lastTs = wb.TimestampMs
		f.barsMu.Unlock()
	case <-f.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				// A failed ping surfaces as a read error; the reader
				// owns reconnection.
				f.conn.WriteMessage(websocket.PingMessage, nil)
			}
			f.connMu.Unlock()
		}
	}
}
