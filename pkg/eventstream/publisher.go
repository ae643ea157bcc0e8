package eventstream

import (
	"context"
	"errors"
)

var (
	// ErrNilSyncEvent is returned by publishers handed a nil event.
	ErrNilSyncEvent = errors.New("nil sync event")

	// ErrPublisherClosed is returned by publishers used after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)

// Publisher delivers committed sync passes to an event backend. The
// synchronizer calls PublishSync after the snapshot is saved, so a failed
// publish never rolls back a pass.
type Publisher interface {
	PublishSync(ctx context.Context, event *IndexSyncedEvent) error
	Close() error
}
