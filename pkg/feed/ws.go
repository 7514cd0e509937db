package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/phenomenon0/courtside/pkg/wss"

	"github.com/sirupsen/logrus"
)

// WSConfig configures a websocket feed.
type WSConfig struct {
	URL string

	// SubscribeMessage is sent after connecting and after every reconnect.
	SubscribeMessage interface{}

	BufferSize        int
	ReconnectEnabled  bool
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration
}

// DefaultWSConfig returns defaults for url.
func DefaultWSConfig(url string) WSConfig {
	return WSConfig{
		URL:               url,
		BufferSize:        1024,
		ReconnectEnabled:  true,
		ReconnectMinDelay: time.Second,
		ReconnectMaxDelay: 30 * time.Second,
	}
}

// WSSource follows a websocket stream and submits every decoded event.
type WSSource struct {
	config WSConfig
	client *wss.Client
	sink   Submitter
	log    *logrus.Entry
	counts counters
}

// NewWSSource creates a source. Nothing is dialed until Run.
func NewWSSource(config WSConfig, sink Submitter, log *logrus.Entry) *WSSource {
	if log == nil {
		log = logrus.WithField("component", "feed")
	}
	log = log.WithField("source", "ws")

	wsConfig := wss.DefaultConfig(config.URL)
	wsConfig.ReconnectEnabled = config.ReconnectEnabled
	if config.ReconnectMinDelay > 0 {
		wsConfig.ReconnectMinDelay = config.ReconnectMinDelay
	}
	if config.ReconnectMaxDelay > 0 {
		wsConfig.ReconnectMaxDelay = config.ReconnectMaxDelay
	}
	wsConfig.ReadBufferSize = 8192
	wsConfig.Logger = log

	s := &WSSource{
		config: config,
		sink:   sink,
		log:    log,
	}
	s.client = wss.NewClient(wsConfig, wss.Handlers{
		OnError: func(err error) {
			log.WithError(err).Debug("websocket error")
		},
	})
	return s
}

// Run connects and submits events until ctx is done or the subscription is
// closed. It returns ctx.Err() on cancellation.
func (s *WSSource) Run(ctx context.Context) error {
	// Subscribe first so nothing sent right after the handshake is missed.
	sub, err := s.client.Subscribe(wss.SubscriptionConfig{
		ID:               "feed",
		SubscribeMessage: s.config.SubscribeMessage,
		BufferSize:       s.config.BufferSize,
	})
	if err != nil {
		return fmt.Errorf("feed subscribe: %w", err)
	}
	defer s.client.Close()

	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	if s.config.SubscribeMessage != nil {
		if err := s.client.SendJSON(s.config.SubscribeMessage); err != nil {
			return fmt.Errorf("feed subscribe: %w", err)
		}
	}
	s.log.Info("feed connected")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			deliver(data, s.sink, &s.counts, s.log)
		}
	}
}

// Connected reports whether the underlying socket is up.
func (s *WSSource) Connected() bool {
	return s.client.IsConnected()
}

// Stats returns frame and message counts.
func (s *WSSource) Stats() Stats {
	return s.counts.stats()
}
