package wss

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Filter reports whether a frame belongs to a subscription. A nil Filter
// takes every frame.
type Filter func(frame []byte) bool

// SubscriptionConfig describes one consumer of a client's frames.
type SubscriptionConfig struct {
	// ID is unique per client; reusing it replaces the previous
	// subscription and closes its channel.
	ID     string
	Filter Filter

	// SubscribeMessage is JSON-encoded and sent whenever the client
	// (re)connects.
	SubscribeMessage interface{}

	BufferSize int
}

// Subscription is a buffered stream of frames. Frames that arrive while
// the buffer is full are counted and discarded.
type Subscription struct {
	config SubscriptionConfig
	client *Client
	frames chan []byte

	delivered atomic.Uint64
	dropped   atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
}

const defaultSubscriptionBuffer = 100

// Subscribe registers a subscription. When the client is already connected
// the subscribe message goes out immediately; the subscription is returned
// even if that send fails.
func (c *Client) Subscribe(config SubscriptionConfig) (*Subscription, error) {
	if config.BufferSize <= 0 {
		config.BufferSize = defaultSubscriptionBuffer
	}
	sub := &Subscription{
		config: config,
		client: c,
		frames: make(chan []byte, config.BufferSize),
	}

	c.subsMu.Lock()
	if prev, ok := c.subscriptions[config.ID]; ok {
		prev.shutdown()
	}
	c.subscriptions[config.ID] = sub
	c.subsMu.Unlock()

	if config.SubscribeMessage != nil && c.IsConnected() {
		return sub, c.SendJSON(config.SubscribeMessage)
	}
	return sub, nil
}

// Unsubscribe removes the subscription with id, if any, and closes its
// channel.
func (c *Client) Unsubscribe(id string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if sub, ok := c.subscriptions[id]; ok {
		delete(c.subscriptions, id)
		sub.shutdown()
	}
}

// ID returns the subscription ID.
func (s *Subscription) ID() string { return s.config.ID }

// Messages returns the frame channel. It is closed with the subscription.
func (s *Subscription) Messages() <-chan []byte { return s.frames }

// Delivered returns how many frames were queued to the channel.
func (s *Subscription) Delivered() uint64 { return s.delivered.Load() }

// Dropped returns how many frames were discarded on a full buffer.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes from the client.
func (s *Subscription) Close() { s.client.Unsubscribe(s.config.ID) }

// IsClosed reports whether the subscription has been closed.
func (s *Subscription) IsClosed() bool { return s.closed.Load() }

// offer queues a frame without blocking. Callers hold the client's
// subscription lock, which keeps offer and shutdown from racing.
func (s *Subscription) offer(frame []byte, log *logrus.Entry) {
	if s.config.Filter != nil && !s.config.Filter(frame) {
		return
	}
	select {
	case s.frames <- frame:
		s.delivered.Add(1)
	default:
		if n := s.dropped.Add(1); n == 1 || n%100 == 0 {
			log.WithFields(logrus.Fields{
				"subscription": s.config.ID,
				"dropped":      n,
			}).Warn("subscription buffer full, dropping frames")
		}
	}
}

func (s *Subscription) shutdown() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.frames)
	})
}
