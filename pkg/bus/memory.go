package bus

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus used by tests and single-node
// deployments that run without redis. Semantics match RedisBus:
// no retained history, best-effort delivery to live subscribers.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[*memorySubscription]struct{}
}

// NewMemoryBus builds an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*memorySubscription]struct{})}
}

// Publish delivers the encoded value to every live subscriber of the topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, v interface{}) error {
	payload, err := encode(v)
	if err != nil {
		return err
	}
	b.mu.Lock()
	targets := make([]*memorySubscription, 0, len(b.subs[topic]))
	for sub := range b.subs[topic] {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(Message{Topic: topic, Payload: payload})
	}
	return nil
}

// Subscribe registers a subscription for the given topics.
func (b *MemoryBus) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	sub := &memorySubscription{
		bus:    b,
		topics: topics,
		out:    make(chan Message, 128),
	}
	b.mu.Lock()
	for _, topic := range topics {
		if b.subs[topic] == nil {
			b.subs[topic] = make(map[*memorySubscription]struct{})
		}
		b.subs[topic][sub] = struct{}{}
	}
	b.mu.Unlock()
	return sub, nil
}

type memorySubscription struct {
	bus    *MemoryBus
	topics []string
	out    chan Message

	mu     sync.Mutex
	closed bool
}

func (s *memorySubscription) C() <-chan Message { return s.out }

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	for _, topic := range s.topics {
		delete(s.bus.subs[topic], s)
		if len(s.bus.subs[topic]) == 0 {
			delete(s.bus.subs, topic)
		}
	}
	s.bus.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	return nil
}

func (s *memorySubscription) deliver(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- msg:
	default:
	}
}
