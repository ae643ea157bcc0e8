package eventstream

import (
	"context"
	"errors"
)

type multiPublisher struct {
	publishers []Publisher
}

// Multi returns a Publisher that hands every event to each of publishers in
// order. A failing publisher does not stop delivery to the rest; all errors
// are joined.
func Multi(publishers ...Publisher) Publisher {
	return &multiPublisher{publishers: publishers}
}

func (m *multiPublisher) PublishSync(ctx context.Context, event *IndexSyncedEvent) error {
	if event == nil {
		return ErrNilSyncEvent
	}

	var errs []error
	for _, p := range m.publishers {
		if err := p.PublishSync(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiPublisher) Close() error {
	var errs []error
	for _, p := range m.publishers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}
