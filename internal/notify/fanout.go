package notify

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-realtime-market/internal/market"
)

// Fanout drives several notifiers as one: typically the local hub plus the
// Kafka stream. Every target is attempted; errors are joined, not short-
// circuited, since delivery stays best-effort either way.
type Fanout []market.Notifier

func (f Fanout) PublishToUser(ctx context.Context, userID, event string, payload any) error {
	var errs []error
	for _, n := range f {
		if err := n.PublishToUser(ctx, userID, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishBroadcast(ctx context.Context, event string, payload any) error {
	var errs []error
	for _, n := range f {
		if err := n.PublishBroadcast(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
