// Package eventbus provides a process-wide multicast broadcaster that
// merges domain events with a periodic heartbeat.
//
// Each subscriber has its own bounded buffer. Publish never blocks: an
// event that would overflow a subscriber's buffer is dropped for that
// subscriber only, logged, and never surfaced as an error.
package eventbus

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/picstream/picstream/pkg/picstream"
)

const (
	// DefaultHeartbeatInterval is the cadence of synthetic liveness events.
	DefaultHeartbeatInterval = 5 * time.Second

	// DefaultBufferSize is the per-subscriber event buffer capacity.
	DefaultBufferSize = 16
)

// Bus broadcasts events to any number of independent subscribers. It
// is a process-wide singleton for the service's lifetime; there is no
// bus-level shutdown. The heartbeat ticker starts once, at
// construction.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscriber
	nextID atomic.Uint64

	bufferSize        int
	heartbeatInterval time.Duration
	logger            *slog.Logger

	dropped atomic.Uint64
}

// Option represents a functional option for configuring the bus
type Option func(*Bus)

// WithHeartbeatInterval sets the heartbeat cadence
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(b *Bus) {
		b.heartbeatInterval = interval
	}
}

// WithBufferSize sets the per-subscriber buffer capacity
func WithBufferSize(size int) Option {
	return func(b *Bus) {
		b.bufferSize = size
	}
}

// WithLogger sets the logger for the bus
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// New creates a bus and starts its heartbeat ticker.
func New(options ...Option) *Bus {
	b := &Bus{
		subs:              make(map[uint64]*Subscriber),
		bufferSize:        DefaultBufferSize,
		heartbeatInterval: DefaultHeartbeatInterval,
	}

	for _, option := range options {
		option(b)
	}

	if b.bufferSize <= 0 {
		b.bufferSize = DefaultBufferSize
	}
	if b.heartbeatInterval <= 0 {
		b.heartbeatInterval = DefaultHeartbeatInterval
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	go b.heartbeatLoop()

	return b
}

// Subscribe registers a new subscriber. The subscriber sees events
// published from this moment onward, in bus arrival order.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:  b.nextID.Add(1),
		ch:  make(chan picstream.Event, b.bufferSize),
		bus: b,
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub
}

// Publish delivers the event to every active subscriber. It never
// blocks and never fails, regardless of subscriber state.
func (b *Bus) Publish(event picstream.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event dropped for slow subscriber",
				"subscriber", sub.id, "type", event.Type, "image_id", event.ImageID)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns the total number of events dropped across all
// subscribers since the bus was created.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) heartbeatLoop() {
	ticker := time.NewTicker(b.heartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		b.Publish(picstream.NewHeartbeatEvent())
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscriber is one registered consumer of the bus.
type Subscriber struct {
	id   uint64
	ch   chan picstream.Event
	bus  *Bus
	once sync.Once
}

// Events returns the subscriber's private event sequence.
func (s *Subscriber) Events() <-chan picstream.Event {
	return s.ch
}

// Close releases the subscriber's registry entry. It is idempotent and
// does not affect other subscribers or the publisher. The event
// channel is left open; events already buffered remain readable.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s.id)
	})
}
