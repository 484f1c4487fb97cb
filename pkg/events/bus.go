package events

import (
	"sync"
	"time"

	"github.com/rvfleet/coordinator/pkg/log"
)

// DefaultBufferSize is used by Subscribe/SubscribeFunc when a caller
// passes a non-positive buffer size.
const DefaultBufferSize = 32

// Handler is a subscriber callback. It runs on its own worker
// goroutine, never on the publisher's goroutine.
type Handler func(Event)

// Bus fans Publish calls out to every subscriber's own buffered
// channel, a single broadcast bus rather than per-connection
// subscriptions.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	logger      log.Logger
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]chan Event)}
}

// SetLogger configures where dropped-event and subscriber-panic
// diagnostics are logged. Pass nil to disable.
func (b *Bus) SetLogger(logger log.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

// Subscribe registers a new subscriber and returns a receive-only
// channel of events along with an unsubscribe function. The caller is
// responsible for draining the channel; Subscribe is the low-level
// primitive SubscribeFunc is built on.
func (b *Bus) Subscribe(bufferSize int) (<-chan Event, func()) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	ch := make(chan Event, bufferSize)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

// SubscribeFunc registers handler to be called, on its own worker
// goroutine, for every published event. A panic inside handler is
// recovered and logged rather than propagating, so one broken
// subscriber cannot take down the bus or any other subscriber.
func (b *Bus) SubscribeFunc(bufferSize int, handler Handler) func() {
	ch, unsubscribe := b.Subscribe(bufferSize)

	go func() {
		for event := range ch {
			b.dispatch(handler, event)
		}
	}()

	return unsubscribe
}

func (b *Bus) dispatch(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logPanic(r)
		}
	}()
	handler(event)
}

// Publish fans event out to every subscriber's channel without
// blocking: a subscriber whose channel is full has the event dropped
// and logged rather than stalling the caller, which is typically the
// session reader goroutine itself.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.logDropped(event)
		}
	}
}

func (b *Bus) logDropped(event Event) {
	if b.logger == nil {
		return
	}
	b.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		TargetID:  event.TargetID,
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: "event dropped: subscriber channel full",
		},
	})
}

func (b *Bus) logPanic(r any) {
	if b.logger == nil {
		return
	}
	b.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: "event subscriber panicked",
			Context: formatPanic(r),
		},
	})
}

func formatPanic(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic: non-error recover value"
}
