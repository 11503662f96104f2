package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus implements Bus on redis pub/sub so that state changes
// reach subscribers on every gateway instance, not just the one the
// acting client is connected to.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBus wraps an already-connected redis client.
func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, logger: logger}
}

// Publish fans the encoded value out to all subscribers of the topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, v interface{}) error {
	payload, err := encode(v)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a redis subscription for the given topics.
func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	if len(topics) == 0 {
		return nil, fmt.Errorf("subscribe requires at least one topic")
	}
	pubsub := b.client.Subscribe(ctx, topics...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %v: %w", topics, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan Message, 128),
	}
	go sub.pump(b.logger)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan Message
}

func (s *redisSubscription) C() <-chan Message { return s.out }

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

func (s *redisSubscription) pump(logger *zap.Logger) {
	defer close(s.out)
	for msg := range s.pubsub.Channel() {
		select {
		case s.out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
		default:
			// A consumer that stops draining must not stall the
			// whole subscription; drop and record.
			logger.Warn("bus subscriber overflow, dropping message",
				zap.String("topic", msg.Channel))
		}
	}
}
