package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// PollerConfig configures an HTTP poll feed.
type PollerConfig struct {
	URL      string
	Interval time.Duration
	Since    int64
	Timeout  time.Duration
}

// DefaultPollerConfig returns defaults for url.
func DefaultPollerConfig(url string) PollerConfig {
	return PollerConfig{
		URL:      url,
		Interval: 500 * time.Millisecond,
		Timeout:  10 * time.Second,
	}
}

// PollResponse is the body returned by a poll endpoint.
type PollResponse struct {
	Next     int64             `json:"next"`
	Messages []json.RawMessage `json:"messages"`
}

// Poller pulls batches from GET {url}?since={seq} and submits the decoded
// events. Requests are throttled to one per interval.
type Poller struct {
	endpoint   *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	sink       Submitter
	log        *logrus.Entry

	cursor atomic.Int64
	counts counters
}

// NewPoller creates a poller.
func NewPoller(config PollerConfig, sink Submitter, log *logrus.Entry) (*Poller, error) {
	endpoint, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("poll url: %w", err)
	}
	if config.Interval <= 0 {
		config.Interval = 500 * time.Millisecond
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logrus.WithField("component", "feed")
	}

	p := &Poller{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Every(config.Interval), 1),
		sink:       sink,
		log:        log.WithField("source", "poll"),
	}
	p.cursor.Store(config.Since)
	return p, nil
}

// Poll performs one request and returns how many messages it carried.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	u := *p.endpoint
	q := u.Query()
	q.Set("since", strconv.FormatInt(p.cursor.Load(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("api error %d: %s", resp.StatusCode, string(body))
	}

	var batch PollResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	for _, raw := range batch.Messages {
		deliver(raw, p.sink, &p.counts, p.log)
	}
	if batch.Next > p.cursor.Load() {
		p.cursor.Store(batch.Next)
	}
	return len(batch.Messages), nil
}

// Run polls until ctx is done. Request errors are logged and retried on the
// next tick.
func (p *Poller) Run(ctx context.Context) error {
	p.log.WithField("url", p.endpoint.Redacted()).Info("feed polling")
	for {
		if _, err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.WithError(err).Warn("poll failed")
		}
	}
}

// Cursor returns the sequence the next poll asks for.
func (p *Poller) Cursor() int64 {
	return p.cursor.Load()
}

// Stats returns frame and message counts.
func (p *Poller) Stats() Stats {
	return p.counts.stats()
}
