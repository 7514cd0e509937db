// Package streaming provides real-time WebSocket streaming for strategy events.
package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"
	"github.com/phenomenon0/courtside/pkg/trader/session"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// EventType represents the type of streaming event.
type EventType string

const (
	EventTypeSignal    EventType = "signal"
	EventTypeOrder     EventType = "order"
	EventTypeFill      EventType = "fill"
	EventTypeExit      EventType = "exit"
	EventTypeSnapshot  EventType = "snapshot"
	EventTypeError     EventType = "error"
	EventTypeHeartbeat EventType = "heartbeat"
)

var allEventTypes = []EventType{
	EventTypeSignal,
	EventTypeOrder,
	EventTypeFill,
	EventTypeExit,
	EventTypeSnapshot,
	EventTypeError,
	EventTypeHeartbeat,
}

// Event is a streaming event sent to clients.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
)

// Hub manages WebSocket connections and broadcasts events. It implements
// session.Observer.
type Hub struct {
	clients   map[*Client]bool
	broadcast chan Event
	mu        sync.RWMutex

	heartbeat time.Duration
	upgrader  websocket.Upgrader
	log       *logrus.Entry
}

var _ session.Observer = (*Hub)(nil)

// Client represents a WebSocket client connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Subscription filters
	subscriptions map[EventType]bool
	subMu         sync.RWMutex
}

// NewHub creates a new streaming hub.
func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.WithField("component", "streaming")
	}
	return &Hub{
		clients:   make(map[*Client]bool),
		broadcast: make(chan Event, 256),
		heartbeat: 30 * time.Second,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run fans out broadcast events until ctx is done, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) {
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-heartbeat.C:
			h.broadcastEvent(Event{
				Type:      EventTypeHeartbeat,
				Timestamp: time.Now(),
				Data:      map[string]interface{}{"clients": h.ClientCount()},
			})
		}
	}
}

func (h *Hub) broadcastEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Warn("failed to marshal stream event")
		return
	}

	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		if !client.isSubscribed(event.Type) {
			continue
		}
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.log.Warn("stream client too slow, disconnecting")
		h.removeClient(client)
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.log.WithField("clients", n).Info("stream client connected")
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.log.WithField("clients", n).Info("stream client disconnected")
	}
}

// Broadcast queues an event for all subscribed clients. Events are dropped
// when the queue is full.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.log.WithField("type", event.Type).Warn("broadcast queue full, dropping event")
	}
}

// BroadcastError broadcasts an error event.
func (h *Hub) BroadcastError(err error, context string) {
	h.Broadcast(Event{
		Type: EventTypeError,
		Data: map[string]interface{}{
			"error":   err.Error(),
			"context": context,
		},
	})
}

// OnSignal streams a signal.
func (h *Hub) OnSignal(s hoops.Signal) {
	h.Broadcast(Event{Type: EventTypeSignal, Timestamp: s.Timestamp, Data: s})
}

// OnOrder streams an order.
func (h *Hub) OnOrder(o hoops.Order) {
	h.Broadcast(Event{Type: EventTypeOrder, Timestamp: o.Timestamp, Data: o})
}

// OnFill streams a fill.
func (h *Hub) OnFill(f hoops.Fill) {
	h.Broadcast(Event{Type: EventTypeFill, Timestamp: f.Timestamp, Data: f})
}

// OnExit streams an exit.
func (h *Hub) OnExit(x hoops.Exit) {
	h.Broadcast(Event{Type: EventTypeExit, Timestamp: x.Timestamp, Data: x})
}

// OnSnapshot streams the strategy state.
func (h *Hub) OnSnapshot(s hoops.Snapshot) {
	h.Broadcast(Event{Type: EventTypeSnapshot, Data: s})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS handles WebSocket upgrade requests.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, 256),
		subscriptions: make(map[EventType]bool, len(allEventTypes)),
	}

	// Subscribe to all events by default
	for _, t := range allEventTypes {
		client.subscriptions[t] = true
	}

	h.addClient(client)

	go client.writePump()
	go client.readPump()
}

// isSubscribed checks if client is subscribed to an event type.
func (c *Client) isSubscribed(eventType EventType) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[eventType]
}

// readPump reads subscription messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Debug("stream read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

// handleMessage processes incoming client messages.
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type   string   `json:"type"`
		Events []string `json:"events"`
	}

	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subMu.Lock()
		for _, event := range msg.Events {
			c.subscriptions[EventType(event)] = true
		}
		c.subMu.Unlock()

	case "unsubscribe":
		c.subMu.Lock()
		for _, event := range msg.Events {
			delete(c.subscriptions, EventType(event))
		}
		c.subMu.Unlock()
	}
}

// writePump writes one event per frame to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
