package eventpublisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/infrastructure/logging"
	"github.com/iho/esledger/internal/usecase"
)

// Recorder receives relay measurements. *metrics.Metrics implements it.
type Recorder interface {
	RecordOutboxPublished(n int)
	RecordOutboxFailure(stage string)
}

// Relay stages reported to Recorder.
const (
	StageFetch = "fetch"
	StagePush  = "push"
	StageMark  = "mark"
)

// EventPublisher relays committed events from the outbox to the event bus.
// Delivery is at-least-once: a batch that was pushed but not marked is pushed
// again on the next poll.
type EventPublisher struct {
	outboxRepo usecase.OutboxRepository
	bus        usecase.EventBus
	recorder   Recorder
	logger     *logging.Logger
	batchSize  int
	interval   time.Duration
	now        func() time.Time
}

// Config for EventPublisher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Bus        usecase.EventBus
	Recorder   Recorder
	Logger     *logging.Logger
	BatchSize  int           // Number of events to fetch per batch
	Interval   time.Duration // Polling interval
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = usecase.DefaultOutboxBatchSize
	}
	if cfg.Interval == 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}

	return &EventPublisher{
		outboxRepo: cfg.OutboxRepo,
		bus:        cfg.Bus,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the relay loop.
// It runs continuously until the context is cancelled.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.InfoCtx(ctx, "outbox relay started",
		slog.Int("batch_size", ep.batchSize),
		slog.Duration("interval", ep.interval))

	ticker := time.NewTicker(ep.interval)
	defer ticker.Stop()

	// Process immediately on start
	ep.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			ep.logger.InfoCtx(ctx, "outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			ep.drain(ctx)
		}
	}
}

// drain relays full batches back to back until the outbox runs dry.
func (ep *EventPublisher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := ep.processEvents(ctx)
		if err != nil {
			ep.logger.ErrorCtx(ctx, "error relaying outbox events", slog.String("error", err.Error()))
			return
		}
		if n < ep.batchSize {
			return
		}
	}
}

// processEvents pushes one batch of unpublished events to the bus as a
// single batch and marks it published. It returns how many were relayed.
func (ep *EventPublisher) processEvents(ctx context.Context) (int, error) {
	recorded, err := ep.outboxRepo.Unpublished(ctx, ep.batchSize)
	if err != nil {
		ep.recorder.RecordOutboxFailure(StageFetch)
		return 0, err
	}

	if len(recorded) == 0 {
		return 0, nil
	}

	events := make([]domain.Event, len(recorded))
	positions := make([]int64, len(recorded))
	for i, r := range recorded {
		events[i] = r.Event
		positions[i] = r.Position
	}

	ep.logger.DebugCtx(ctx, "relaying events",
		slog.Int("count", len(events)),
		slog.Int64("from_position", positions[0]),
		slog.Int64("to_position", positions[len(positions)-1]))

	// Nothing is marked unless the whole batch reached the bus.
	if err := ep.bus.Push(ctx, events); err != nil {
		ep.recorder.RecordOutboxFailure(StagePush)
		return 0, err
	}

	if err := ep.outboxRepo.MarkPublished(ctx, positions, ep.now()); err != nil {
		ep.recorder.RecordOutboxFailure(StageMark)
		return 0, err
	}

	ep.recorder.RecordOutboxPublished(len(events))
	return len(events), nil
}

type nopRecorder struct{}

func (nopRecorder) RecordOutboxPublished(int)  {}
func (nopRecorder) RecordOutboxFailure(string) {}

// EventLogger is a bus listener that logs every delivered event.
type EventLogger struct {
	logger *logging.Logger
}

// NewEventLogger creates a new EventLogger.
func NewEventLogger(logger *logging.Logger) *EventLogger {
	if logger == nil {
		logger = logging.Default()
	}
	return &EventLogger{logger: logger}
}

// Handle logs the event at debug level.
func (l *EventLogger) Handle(ctx context.Context, event domain.Event) {
	l.logger.DebugCtx(ctx, "event delivered",
		slog.String("event_type", event.EventType()),
		slog.String("aggregate_id", event.AggregateID()),
		slog.Any("event", event))
}
