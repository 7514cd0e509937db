// Package wss provides a generic WebSocket client with automatic reconnection,
// subscription routing and heartbeat pings. The feed uses it to follow a live
// play-by-play and market stream.
package wss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	ErrClosed       = errors.New("client closed")
	ErrNotConnected = errors.New("not connected")
)

// State represents the connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

var stateNames = [...]string{
	StateDisconnected: "disconnected",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateReconnecting: "reconnecting",
	StateClosed:       "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Handlers are optional connection callbacks. Frames are delivered through
// subscriptions only.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func(err error)
	OnError      func(err error)
}

// Config holds WebSocket client configuration.
type Config struct {
	URL string

	// Reconnects retry until Close, backing off exponentially.
	ReconnectEnabled  bool
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	WriteTimeout time.Duration
	ReadTimeout  time.Duration

	ReadBufferSize  int
	WriteBufferSize int

	Logger *logrus.Entry
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		ReconnectEnabled:  true,
		ReconnectMinDelay: time.Second,
		ReconnectMaxDelay: 30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
	}
}

// Client is a WebSocket client with reconnection support.
type Client struct {
	config   Config
	handlers Handlers
	log      *logrus.Entry

	conn   *websocket.Conn
	connMu sync.RWMutex
	state  atomic.Int32 // State

	writeCh   chan writeRequest
	closeCh   chan struct{}
	closeOnce sync.Once

	subscriptions map[string]*Subscription
	subsMu        sync.RWMutex

	reconnectAttempts atomic.Int32
}

type writeRequest struct {
	data   []byte
	result chan error
}

// NewClient creates a new WebSocket client.
func NewClient(config Config, handlers Handlers) *Client {
	log := config.Logger
	if log == nil {
		log = logrus.WithField("component", "wss")
	}
	return &Client{
		config:        config,
		handlers:      handlers,
		log:           log.WithField("url", config.URL),
		writeCh:       make(chan writeRequest, 100),
		closeCh:       make(chan struct{}),
		subscriptions: make(map[string]*Subscription),
	}
}

// Connect establishes the WebSocket connection and starts the read, write
// and heartbeat loops for it.
func (c *Client) Connect(ctx context.Context) error {
	if c.getState() == StateClosed {
		return ErrClosed
	}

	c.setState(StateConnecting)

	dialer := websocket.Dialer{
		ReadBufferSize:  c.config.ReadBufferSize,
		WriteBufferSize: c.config.WriteBufferSize,
	}

	conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("dial failed: %w", err)
	}

	if c.config.ReadTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		})
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected)
	c.reconnectAttempts.Store(0)
	c.log.Info("websocket connected")

	if c.handlers.OnConnect != nil {
		c.handlers.OnConnect()
	}

	// Loops for this connection stop when it drops.
	connDone := make(chan struct{})
	go c.readLoop(conn, connDone)
	go c.writeLoop(conn, connDone)
	if c.config.HeartbeatInterval > 0 {
		go c.heartbeatLoop(conn, connDone)
	}

	return nil
}

// Close closes the WebSocket connection and stops reconnecting.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		close(c.closeCh)

		c.connMu.Lock()
		if c.conn != nil {
			deadline := time.Now().Add(time.Second)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			c.conn.Close()
		}
		c.connMu.Unlock()
	})
	return nil
}

// SendJSON encodes v and writes it as one text frame on the live
// connection.
func (c *Client) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	if c.getState() != StateConnected {
		return ErrNotConnected
	}

	result := make(chan error, 1)
	select {
	case c.writeCh <- writeRequest{data: data, result: result}:
	case <-c.closeCh:
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-c.closeCh:
		return ErrClosed
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.getState()
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.getState() == StateConnected
}

// --- Internal methods ---

func (c *Client) getState() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	for {
		old := State(c.state.Load())
		// Closed is terminal.
		if old == StateClosed && s != StateClosed {
			return
		}
		if c.state.CompareAndSwap(int32(old), int32(s)) {
			if old != s {
				c.log.WithFields(logrus.Fields{"from": old, "to": s}).Debug("state change")
			}
			return
		}
	}
}

func (c *Client) reportError(err error) {
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
}

func (c *Client) readLoop(conn *websocket.Conn, connDone chan struct{}) {
	var readErr error
	defer func() {
		close(connDone)
		if c.getState() != StateClosed {
			c.handleDisconnect(readErr)
		}
	}()

	for {
		if c.config.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.getState() == StateClosed {
				return
			}
			readErr = err
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.reportError(err)
			}
			return
		}

		c.routeMessage(data)
	}
}

func (c *Client) writeLoop(conn *websocket.Conn, connDone chan struct{}) {
	for {
		select {
		case <-c.closeCh:
			return
		case <-connDone:
			return
		case req := <-c.writeCh:
			if c.config.WriteTimeout > 0 {
				conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			}

			err := conn.WriteMessage(websocket.TextMessage, req.data)
			req.result <- err
			if err != nil {
				c.reportError(err)
			}
		}
	}
}

func (c *Client) heartbeatLoop(conn *websocket.Conn, connDone chan struct{}) {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case <-connDone:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.config.HeartbeatTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.reportError(fmt.Errorf("heartbeat failed: %w", err))
			}
		}
	}
}

func (c *Client) handleDisconnect(err error) {
	c.setState(StateDisconnected)
	c.log.WithError(err).Warn("websocket disconnected")

	if c.handlers.OnDisconnect != nil {
		c.handlers.OnDisconnect(err)
	}

	if c.config.ReconnectEnabled && c.getState() != StateClosed {
		go c.reconnect()
	}
}

// backoff returns the delay before the given reconnect attempt.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.config.ReconnectMinDelay
	for i := 1; i < attempt && delay < c.config.ReconnectMaxDelay; i++ {
		delay *= 2
	}
	if delay > c.config.ReconnectMaxDelay {
		delay = c.config.ReconnectMaxDelay
	}
	return delay
}

func (c *Client) reconnect() {
	c.setState(StateReconnecting)

	for {
		if c.getState() == StateClosed {
			return
		}

		attempt := int(c.reconnectAttempts.Add(1))

		delay := c.backoff(attempt)
		c.log.WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Info("reconnecting")

		select {
		case <-c.closeCh:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			c.resubscribe()
			return
		}
		c.reportError(fmt.Errorf("reconnect attempt %d failed: %w", attempt, err))
	}
}

func (c *Client) routeMessage(data []byte) {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()

	for _, sub := range c.subscriptions {
		sub.offer(data, c.log)
	}
}

func (c *Client) resubscribe() {
	c.subsMu.RLock()
	msgs := make([]interface{}, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		if sub.config.SubscribeMessage != nil {
			msgs = append(msgs, sub.config.SubscribeMessage)
		}
	}
	c.subsMu.RUnlock()

	for _, msg := range msgs {
		if err := c.SendJSON(msg); err != nil {
			c.reportError(fmt.Errorf("resubscribe failed: %w", err))
		}
	}
}
