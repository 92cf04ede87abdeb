package usecase

import (
	"context"

	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/infrastructure/logging"
)

// PublishingEventStore hands every committed batch to the bus after a
// successful Save. It is used when the store has no outbox of its own.
type PublishingEventStore struct {
	domain.EventStore
	bus    EventBus
	logger *logging.Logger
}

// NewPublishingEventStore wraps store.
func NewPublishingEventStore(store domain.EventStore, bus EventBus, logger *logging.Logger) *PublishingEventStore {
	if logger == nil {
		logger = logging.Discard()
	}
	return &PublishingEventStore{EventStore: store, bus: bus, logger: logger}
}

// Save commits events and publishes them. A publish failure does not undo
// the commit, so it is logged and the committed events are still returned.
func (s *PublishingEventStore) Save(ctx context.Context, aggregateID string, expectedVersion int64, events ...domain.Event) ([]domain.Event, error) {
	committed, err := s.EventStore.Save(ctx, aggregateID, expectedVersion, events...)
	if err != nil {
		return nil, err
	}

	if err := s.bus.Push(ctx, committed); err != nil {
		s.logger.ErrorCtx(ctx, "failed to publish committed events",
			"aggregate_id", aggregateID,
			"events", len(committed),
			"error", err,
		)
	}
	return committed, nil
}
