package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/iho/esledger/internal/domain"
)

// EventStore implements domain.EventStore in process memory.
type EventStore struct {
	mu      sync.RWMutex
	streams map[string][]domain.Event
}

// NewEventStore creates an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		streams: make(map[string][]domain.Event),
	}
}

// Load returns a copy of the aggregate's stream.
func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.streams[aggregateID]), nil
}

// Save appends events when the stream length equals expectedVersion.
// The check and the append happen under one lock.
func (s *EventStore) Save(ctx context.Context, aggregateID string, expectedVersion int64, events ...domain.Event) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	if int64(len(stream)) != expectedVersion {
		return nil, domain.ErrConflict
	}

	s.streams[aggregateID] = append(stream, events...)

	return slices.Clone(events), nil
}

// Events is Load without a context, for inspection.
func (s *EventStore) Events(aggregateID string) []domain.Event {
	events, _ := s.Load(context.Background(), aggregateID)
	return events
}
