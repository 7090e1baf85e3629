// Package bus is the in-process event bus that decouples order intake,
// matching, and persistence. Delivery is single-threaded and cooperative:
// one drain goroutine dequeues events in publish order and, for each,
// invokes every handler registered for that event's kind, in registration
// order, before moving to the next event. A handler that blocks on I/O
// only delays later events, it never reorders earlier ones.
package bus

import (
	"context"
	"reflect"
	"sync"

	"github.com/rs/zerolog"
)

// Kind identifies the shape of an event's payload and which handlers
// should receive it.
type Kind string

const (
	KindOrderCreate       Kind = "ORDER_CREATE"
	KindOrderUpdate       Kind = "ORDER_UPDATE"
	KindOrderUpdateStatus Kind = "ORDER_UPDATE_STATUS"
	KindOrderUpdateFrozen Kind = "ORDER_UPDATE_FROZEN"
	KindStatementCreate   Kind = "STATEMENT_CREATE"
	KindUserUpdateAssets  Kind = "USER_UPDATE_ASSETS"
	KindPositionCreate    Kind = "POSITION_CREATE"
	KindPositionUpdate    Kind = "POSITION_UPDATE"
	KindPositionClear     Kind = "POSITION_CLEAR"
	KindMarketClose       Kind = "MARKET_CLOSE"
	KindMarketOpen        Kind = "MARKET_OPEN"
	KindLog               Kind = "LOG"
)

// Event is one message traveling through the bus. Payload is a typed
// struct specific to Kind; handlers type-assert it.
type Event struct {
	Kind    Kind
	Payload any
}

// Handler processes one event. Returning an error only causes the bus to
// log it; the event is still considered delivered.
type Handler func(ctx context.Context, e Event) error

// Bus is a single-consumer, multi-producer event queue with per-kind
// handler registries.
type Bus struct {
	log zerolog.Logger

	mu       sync.Mutex
	handlers map[Kind][]Handler

	queue  chan Event
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New constructs a Bus with the given queue depth. A depth below 1 is
// replaced by a default depth of 1024.
func New(log zerolog.Logger, queueDepth int) *Bus {
	if queueDepth < 1 {
		queueDepth = 1024
	}
	return &Bus{
		log:      log.With().Str("component", "bus").Logger(),
		handlers: make(map[Kind][]Handler),
		queue:    make(chan Event, queueDepth),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Register appends handler to the list invoked for kind. Registration is
// idempotent in spirit but not in implementation: callers are expected to
// register each handler exactly once at startup.
func (b *Bus) Register(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Unregister removes h from the handlers invoked for kind. It is a no-op
// if h was never registered for kind. Handler values are compared by the
// function pointer they wrap, since func values aren't otherwise
// comparable.
func (b *Bus) Unregister(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	target := reflect.ValueOf(h).Pointer()
	handlers := b.handlers[kind]
	for i, existing := range handlers {
		if reflect.ValueOf(existing).Pointer() == target {
			b.handlers[kind] = append(handlers[:i], handlers[i+1:]...)
			return
		}
	}
}

// Put enqueues an event for delivery. It blocks only while the queue is
// full. If ctx is canceled before the event is enqueued, the event is
// dropped and a warning is logged; Put reports no error to the caller.
func (b *Bus) Put(ctx context.Context, e Event) {
	select {
	case b.queue <- e:
	case <-ctx.Done():
		b.log.Warn().Str("kind", string(e.Kind)).Msg("put canceled before enqueue")
	}
}

// Startup begins the drain loop. It returns immediately; the loop runs
// until Shutdown is called.
func (b *Bus) Startup(ctx context.Context) {
	go b.drain(ctx)
}

// Shutdown stops the drain loop after the event currently in flight (if
// any) finishes, and waits for the loop to exit.
func (b *Bus) Shutdown() {
	b.once.Do(func() { close(b.stop) })
	<-b.done
}

func (b *Bus) drain(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case <-ctx.Done():
			return
		case e := <-b.queue:
			b.dispatch(ctx, e)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, e Event) {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.handlers[e.Kind]...)
	b.mu.Unlock()

	for i, h := range handlers {
		if err := h(ctx, e); err != nil {
			b.log.Error().
				Str("kind", string(e.Kind)).
				Int("handler", i).
				Err(err).
				Msg("event handler failed")
		}
	}
}
