// Package messaging implements the session message bus: topic-based
// fan-out of alerts, presence counts, and mode changes to dashboard
// subscribers. An in-memory bus serves single-instance deployments; a
// Redis Pub/Sub bus layers cross-instance delivery on top of it.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// Errors returned by bus implementations.
var (
	// ErrBusClosed is returned when operations are attempted on a closed bus.
	ErrBusClosed = errors.New("messaging: bus is closed")
)

// Message is one delivery to a topic subscriber. Payloads are JSON so the
// websocket gateway can forward them verbatim.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus publishes JSON payloads to topics and fans them out to subscribers.
// Publish is best-effort with respect to delivery: a subscriber that does
// not drain its channel loses messages rather than blocking the publisher.
type Bus interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(ctx context.Context, topic string) (<-chan Message, func(), error)
	Close() error
}

// subscriberBuffer is the per-subscriber channel depth. A dashboard that
// falls this far behind is dropping frames anyway.
const subscriberBuffer = 64

// InMemoryBus is a process-local topic bus. Suitable for single-instance
// deployments and testing.
type InMemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Message
	nextID int
	closed bool
	log    *zap.Logger
}

// NewInMemoryBus creates a new in-memory bus.
func NewInMemoryBus(log *zap.Logger) *InMemoryBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &InMemoryBus{
		subs: make(map[string]map[int]chan Message),
		log:  log,
	}
}

// Publish marshals the payload and delivers it to every subscriber of the
// topic. Slow subscribers are skipped, not waited for.
func (b *InMemoryBus) Publish(_ context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	for _, ch := range b.subs[topic] {
		select {
		case ch <- Message{Topic: topic, Payload: data}:
		default:
			b.log.Warn("dropping message for slow subscriber", logger.Topic(topic))
		}
	}
	return nil
}

// Subscribe registers a subscriber channel for a topic. The returned cancel
// function removes the subscription and closes the channel.
func (b *InMemoryBus) Subscribe(_ context.Context, topic string) (<-chan Message, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++

	ch := make(chan Message, subscriberBuffer)
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan Message)
	}
	b.subs[topic][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[topic]; ok {
			if c, ok := subs[id]; ok {
				delete(subs, id)
				close(c)
				if len(subs) == 0 {
					delete(b.subs, topic)
				}
			}
		}
	}
	return ch, cancel, nil
}

// Close shuts the bus down and closes all subscriber channels.
func (b *InMemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	for topic, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, topic)
	}
	return nil
}
