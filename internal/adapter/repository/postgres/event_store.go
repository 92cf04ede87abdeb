package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/usecase"
)

const (
	currentVersionSQL = `SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = $1`

	insertEventSQL = `INSERT INTO events (aggregate_id, version, event_type, payload, recorded_at)
VALUES ($1, $2, $3, $4, $5)`

	loadEventsSQL = `SELECT event_type, payload FROM events WHERE aggregate_id = $1 ORDER BY version`

	unpublishedEventsSQL = `SELECT global_position, version, event_type, payload, recorded_at
FROM events WHERE published_at IS NULL ORDER BY global_position LIMIT $1`

	markPublishedSQL = `UPDATE events SET published_at = $1 WHERE global_position = ANY($2)`
)

// EventStore implements domain.EventStore and usecase.OutboxRepository on
// top of a single events table. Rows with a NULL published_at form the
// outbox.
type EventStore struct {
	pool    pgxPool
	retrier usecase.Retrier
	now     func() time.Time
}

// NewEventStore creates a new EventStore. retrier is applied to transient
// database errors; ErrConflict is never retried here.
func NewEventStore(pool *pgxpool.Pool, retrier usecase.Retrier) *EventStore {
	return newEventStoreWithPool(pool, retrier)
}

func newEventStoreWithPool(pool pgxPool, retrier usecase.Retrier) *EventStore {
	return &EventStore{
		pool:    pool,
		retrier: retrier,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Load returns the aggregate's events ordered by version.
func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, loadEventsSQL, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0)
	for rows.Next() {
		var (
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&eventType, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event, err := domain.DecodeEvent(eventType, payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}

// Save appends events at versions expectedVersion+1 onwards. The primary key
// on (aggregate_id, version) turns a lost race into a unique violation, which
// is reported as domain.ErrConflict.
func (s *EventStore) Save(ctx context.Context, aggregateID string, expectedVersion int64, events ...domain.Event) ([]domain.Event, error) {
	payloads := make([][]byte, len(events))
	for i, e := range events {
		p, err := domain.EncodeEvent(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", e.EventType(), err)
		}
		payloads[i] = p
	}

	err := s.retry(ctx, func() error {
		return withTx(ctx, s.pool, func(tx pgx.Tx) error {
			var current int64
			if err := tx.QueryRow(ctx, currentVersionSQL, aggregateID).Scan(&current); err != nil {
				return fmt.Errorf("failed to read stream version: %w", err)
			}
			if current != expectedVersion {
				return domain.ErrConflict
			}

			recordedAt := s.now()
			for i, e := range events {
				_, err := tx.Exec(ctx, insertEventSQL,
					aggregateID,
					expectedVersion+int64(i)+1,
					e.EventType(),
					payloads[i],
					recordedAt,
				)
				if isUniqueViolation(err) {
					return domain.ErrConflict
				}
				if err != nil {
					return fmt.Errorf("failed to insert event: %w", err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return append([]domain.Event(nil), events...), nil
}

// Unpublished returns up to limit events not yet handed to the bus, in
// commit order per aggregate.
func (s *EventStore) Unpublished(ctx context.Context, limit int) ([]domain.RecordedEvent, error) {
	rows, err := s.pool.Query(ctx, unpublishedEventsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}
	defer rows.Close()

	recorded := make([]domain.RecordedEvent, 0)
	for rows.Next() {
		var (
			r         domain.RecordedEvent
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&r.Position, &r.Version, &eventType, &payload, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if r.Event, err = domain.DecodeEvent(eventType, payload); err != nil {
			return nil, err
		}
		recorded = append(recorded, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read unpublished events: %w", err)
	}
	return recorded, nil
}

// MarkPublished stamps the given positions as delivered to the bus.
func (s *EventStore) MarkPublished(ctx context.Context, positions []int64, publishedAt time.Time) error {
	if len(positions) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, markPublishedSQL, publishedAt, positions); err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}
	return nil
}

func (s *EventStore) retry(ctx context.Context, op func() error) error {
	if s.retrier == nil {
		return op()
	}
	return s.retrier.Retry(ctx, op)
}
