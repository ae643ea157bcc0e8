// Package nop provides the publisher used when events.provider is "none".
package nop

import (
	"context"
	"sync/atomic"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/eventstream"
)

// Publisher accepts events and drops them, counting what it saw.
type Publisher struct {
	published atomic.Int64
	closed    atomic.Bool
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) PublishSync(_ context.Context, event *eventstream.IndexSyncedEvent) error {
	if event == nil {
		return eventstream.ErrNilSyncEvent
	}
	if p.closed.Load() {
		return eventstream.ErrPublisherClosed
	}
	p.published.Add(1)
	return nil
}

// Published reports how many events were accepted.
func (p *Publisher) Published() int64 {
	return p.published.Load()
}

func (p *Publisher) Close() error {
	p.closed.Store(true)
	return nil
}
