package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventStore is an append-only log of events per account.
type EventStore interface {
	// Load returns every committed event of the aggregate in order.
	// An unknown aggregate yields an empty slice and no error.
	Load(ctx context.Context, aggregateID string) ([]Event, error)

	// Save appends events if the stream length equals expectedVersion,
	// otherwise it commits nothing and returns ErrConflict.
	Save(ctx context.Context, aggregateID string, expectedVersion int64, events ...Event) ([]Event, error)
}

// RecordedEvent is an event as persisted by a durable store.
type RecordedEvent struct {
	Position   int64
	Version    int64
	RecordedAt time.Time
	Event      Event
}

// EncodeEvent returns the JSON payload of an event.
func EncodeEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent rebuilds an event from its type name and JSON payload.
func DecodeEvent(eventType string, payload []byte) (Event, error) {
	switch eventType {
	case EventTypeAccountRegistered:
		return decodeAs[AccountRegistered](payload)
	case EventTypeCreditProvisioned:
		return decodeAs[CreditProvisioned](payload)
	case EventTypeCreditWithdrawn:
		return decodeAs[CreditWithdrawn](payload)
	case EventTypeTransferRequested:
		return decodeAs[TransferRequested](payload)
	case EventTypeTransferReceived:
		return decodeAs[TransferReceived](payload)
	case EventTypeTransferCompleted:
		return decodeAs[TransferCompleted](payload)
	case EventTypeTransferCanceled:
		return decodeAs[TransferCanceled](payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
}

func decodeAs[T Event](payload []byte) (Event, error) {
	var e T
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("failed to decode event payload: %w", err)
	}
	return e, nil
}
