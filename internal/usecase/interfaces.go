package usecase

import (
	"context"
	"time"

	"github.com/iho/esledger/internal/domain"
)

// EventBus delivers committed events to in-process listeners.
type EventBus interface {
	Push(ctx context.Context, events []domain.Event) error
}

// Retrier re-runs an operation while it fails with a transient error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// OutboxRepository exposes committed events that were not yet handed to the bus.
type OutboxRepository interface {
	Unpublished(ctx context.Context, limit int) ([]domain.RecordedEvent, error)
	MarkPublished(ctx context.Context, positions []int64, publishedAt time.Time) error
}

// BalanceView stores the projected balance of each account.
type BalanceView interface {
	// Get returns domain.ErrAccountNotFound when nothing was projected yet.
	Get(ctx context.Context, accountID string) (domain.AccountBalance, error)
	// Put stores b unless a newer version is already stored. It reports
	// whether the view changed.
	Put(ctx context.Context, b domain.AccountBalance) (bool, error)
	// Overwrite stores b regardless of the stored version.
	Overwrite(ctx context.Context, b domain.AccountBalance) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key whose request did not produce a cacheable response.
	Release(ctx context.Context, key string) error
}

// MetricsRecorder receives application-level measurements.
type MetricsRecorder interface {
	RecordCommand(command, outcome string)
	RecordSagaReaction(eventType, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCommand(string, string)      {}
func (nopRecorder) RecordSagaReaction(string, string) {}
