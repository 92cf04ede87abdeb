package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/infrastructure/logging"
)

// ErrBusClosed is returned by Push after Close.
var ErrBusClosed = errors.New("event bus is closed")

// Listener receives every event pushed to the bus.
type Listener interface {
	Handle(ctx context.Context, event domain.Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, event domain.Event)

// Handle calls f.
func (f ListenerFunc) Handle(ctx context.Context, event domain.Event) {
	f(ctx, event)
}

// Config for InMemoryEventBus.
type Config struct {
	QueueSize  int // Maximum batches waiting for delivery
	Logger     *logging.Logger
	QueueDepth prometheus.Gauge // Optional
}

// InMemoryEventBus delivers batches of events to listeners on a single
// worker goroutine, in submission order.
type InMemoryEventBus struct {
	lmu       sync.RWMutex
	listeners []Listener

	mu         sync.Mutex
	queue      [][]domain.Event
	capacity   int
	closed     bool
	spaceFreed chan struct{}

	wake   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	logger *logging.Logger
	depth  prometheus.Gauge
}

type dispatchKey struct{}

// NewInMemoryEventBus creates a bus and starts its worker.
func NewInMemoryEventBus(cfg Config) *InMemoryEventBus {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &InMemoryEventBus{
		capacity:   cfg.QueueSize,
		spaceFreed: make(chan struct{}),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		logger:     cfg.Logger,
		depth:      cfg.QueueDepth,
	}
	b.ctx = context.WithValue(ctx, dispatchKey{}, b)

	go b.run()

	return b
}

// Register adds a listener. Listeners are called in registration order.
func (b *InMemoryEventBus) Register(l Listener) {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Clear removes all listeners.
func (b *InMemoryEventBus) Clear() {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	b.listeners = nil
}

// Push enqueues a batch for asynchronous delivery. It blocks while the queue
// is full, except when called from a listener of this bus: those pushes are
// always accepted, even during Close, so the worker never waits on itself and
// follow-up events are drained too.
func (b *InMemoryEventBus) Push(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := slices.Clone(events)

	b.mu.Lock()
	for {
		dispatching := b.isDispatching(ctx)
		if b.closed && !dispatching {
			b.mu.Unlock()
			return ErrBusClosed
		}
		if len(b.queue) < b.capacity || dispatching {
			break
		}

		freed := b.spaceFreed
		b.mu.Unlock()
		select {
		case <-freed:
		case <-ctx.Done():
			return ctx.Err()
		}
		b.mu.Lock()
	}

	b.queue = append(b.queue, batch)
	b.setDepth(len(b.queue))
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}

	return nil
}

// Close stops accepting batches and waits until the queued ones are
// delivered. If ctx expires first, in-flight listeners see a cancelled
// context and Close returns ctx.Err().
func (b *InMemoryEventBus) Close(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	close(b.spaceFreed)
	b.spaceFreed = make(chan struct{})
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}

	select {
	case <-b.done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		return fmt.Errorf("event bus drain interrupted: %w", ctx.Err())
	}
}

func (b *InMemoryEventBus) isDispatching(ctx context.Context) bool {
	owner, ok := ctx.Value(dispatchKey{}).(*InMemoryEventBus)
	return ok && owner == b
}

func (b *InMemoryEventBus) run() {
	defer close(b.done)

	for {
		batch, ok := b.next()
		if !ok {
			return
		}
		for _, event := range batch {
			b.dispatch(event)
		}
	}
}

// next blocks until a batch is available. It returns false once the bus is
// closed and drained.
func (b *InMemoryEventBus) next() ([]domain.Event, bool) {
	b.mu.Lock()
	for len(b.queue) == 0 {
		if b.closed {
			b.mu.Unlock()
			return nil, false
		}
		b.mu.Unlock()
		<-b.wake
		b.mu.Lock()
	}

	batch := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	b.setDepth(len(b.queue))

	close(b.spaceFreed)
	b.spaceFreed = make(chan struct{})
	b.mu.Unlock()

	return batch, true
}

func (b *InMemoryEventBus) dispatch(event domain.Event) {
	b.lmu.RLock()
	listeners := slices.Clone(b.listeners)
	b.lmu.RUnlock()

	for _, l := range listeners {
		b.deliver(l, event)
	}
}

func (b *InMemoryEventBus) deliver(l Listener, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorCtx(b.ctx, "event listener panicked",
				slog.String("event_type", event.EventType()),
				slog.String("aggregate_id", event.AggregateID()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	l.Handle(b.ctx, event)
}

func (b *InMemoryEventBus) setDepth(n int) {
	if b.depth != nil {
		b.depth.Set(float64(n))
	}
}
