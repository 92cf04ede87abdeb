package mocks

import (
	"context"
	"strconv"
	"sync"

	"github.com/iho/esledger/internal/domain"
)

// MockEventStore is a mock implementation of domain.EventStore. Without
// overrides it behaves like an in-memory store.
type MockEventStore struct {
	mu      sync.Mutex
	streams map[string][]domain.Event

	LoadCalls int
	SaveCalls int

	LoadFunc func(ctx context.Context, aggregateID string) ([]domain.Event, error)
	SaveFunc func(ctx context.Context, aggregateID string, expectedVersion int64, events ...domain.Event) ([]domain.Event, error)
}

func NewMockEventStore() *MockEventStore {
	return &MockEventStore{
		streams: make(map[string][]domain.Event),
	}
}

func (m *MockEventStore) Load(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	m.mu.Lock()
	m.LoadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, aggregateID)
	}
	return m.Stream(aggregateID), nil
}

func (m *MockEventStore) Save(ctx context.Context, aggregateID string, expectedVersion int64, events ...domain.Event) ([]domain.Event, error) {
	m.mu.Lock()
	m.SaveCalls++
	m.mu.Unlock()

	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, aggregateID, expectedVersion, events...)
	}
	return m.Append(aggregateID, expectedVersion, events...)
}

// Append is the default Save behaviour, usable from SaveFunc overrides.
func (m *MockEventStore) Append(aggregateID string, expectedVersion int64, events ...domain.Event) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int64(len(m.streams[aggregateID])) != expectedVersion {
		return nil, domain.ErrConflict
	}
	m.streams[aggregateID] = append(m.streams[aggregateID], events...)
	return append([]domain.Event(nil), events...), nil
}

// Stream returns a copy of the events stored for aggregateID.
func (m *MockEventStore) Stream(aggregateID string) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Event(nil), m.streams[aggregateID]...)
}

// MockIDGenerator is a mock implementation of domain.IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	Prefix       string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{Prefix: "mock-id-"}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return m.Prefix + strconv.Itoa(m.counter)
}
