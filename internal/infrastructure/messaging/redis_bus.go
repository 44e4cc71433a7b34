package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// channelPrefix namespaces the bus inside a shared Redis instance.
const channelPrefix = "classpulse:"

// RedisBus is a Redis Pub/Sub backed bus for deployments where dashboard
// subscribers and device gateways live on different instances. Local
// subscribers are served through an embedded in-memory bus fed by the
// Redis subscription loop, so delivery semantics match InMemoryBus.
type RedisBus struct {
	client *redis.Client
	local  *InMemoryBus
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRedisBus creates a Redis-backed bus subscribed to the whole
// application namespace.
func NewRedisBus(client *redis.Client, log *zap.Logger) (*RedisBus, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	b := &RedisBus{
		client: client,
		local:  NewInMemoryBus(log),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}

	pubsub := client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		return nil, err
	}

	b.wg.Add(1)
	go b.subscriptionLoop(pubsub)

	return b, nil
}

// Publish sends the payload to Redis; the subscription loop feeds it back
// to local subscribers, and other instances pick it up the same way.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload any) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+topic, data).Err()
}

// Subscribe registers a local subscriber for a topic.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (<-chan Message, func(), error) {
	return b.local.Subscribe(ctx, topic)
}

func (b *RedisBus) subscriptionLoop(pubsub *redis.PubSub) {
	defer b.wg.Done()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			topic := strings.TrimPrefix(msg.Channel, channelPrefix)
			// Payload is already JSON; republish raw to local subscribers.
			if err := b.local.Publish(b.ctx, topic, json.RawMessage(msg.Payload)); err != nil {
				b.log.Warn("local fan-out failed", logger.Topic(topic), zap.Error(err))
			}
		}
	}
}

// Close stops the subscription loop and shuts down local fan-out.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.local.Close()
}
