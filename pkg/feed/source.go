package feed

import (
	"sync/atomic"

	"github.com/phenomenon0/courtside/pkg/trader/session"

	"github.com/sirupsen/logrus"
)

// Submitter accepts decoded events. session.Runner satisfies it.
type Submitter interface {
	Submit(ev session.Event)
}

// Stats counts what a source has seen.
type Stats struct {
	Frames   uint64 `json:"frames"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

type counters struct {
	frames   atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
}

func (c *counters) stats() Stats {
	return Stats{
		Frames:   c.frames.Load(),
		Accepted: c.accepted.Load(),
		Rejected: c.rejected.Load(),
	}
}

// deliver decodes one frame and submits every valid event in it. Invalid
// messages are logged and skipped.
func deliver(data []byte, sink Submitter, c *counters, log *logrus.Entry) {
	c.frames.Add(1)
	events, errs := DecodeBatch(data)
	for _, err := range errs {
		c.rejected.Add(1)
		log.WithError(err).Warn("skipping feed message")
	}
	for _, ev := range events {
		c.accepted.Add(1)
		sink.Submit(ev)
	}
}
