package events

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
)

const memorySubscriptionBuffer = 1024

// MemoryBroker fans messages out to named subscriptions inside one process.
// Several hubs sharing one MemoryBroker behave like several instances sharing
// a real broker.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[Topic]map[string]chan Message
	seq  atomic.Uint64
}

var _ Broker = (*MemoryBroker)(nil)

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[Topic]map[string]chan Message)}
}

// ensure creates the subscription queue, tolerating an existing one.
func (b *MemoryBroker) ensure(topic Topic, subscription string) chan Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	byName, ok := b.subs[topic]
	if !ok {
		byName = make(map[string]chan Message)
		b.subs[topic] = byName
	}
	q, ok := byName[subscription]
	if !ok {
		q = make(chan Message, memorySubscriptionBuffer)
		byName[subscription] = q
	}
	return q
}

func (b *MemoryBroker) Publish(ctx context.Context, topic Topic, payload []byte, routing Routing) error {
	msg := Message{
		ID:      strconv.FormatUint(b.seq.Add(1), 10),
		Topic:   topic,
		Payload: append([]byte(nil), payload...),
		Routing: routing.clone(),
	}

	b.mu.RLock()
	queues := make([]chan Message, 0, len(b.subs[topic]))
	for _, q := range b.subs[topic] {
		queues = append(queues, q)
	}
	b.mu.RUnlock()

	for _, q := range queues {
		select {
		case q <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic Topic, subscription string, out chan<- Message) error {
	q := b.ensure(topic, subscription)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-q:
			select {
			case out <- msg:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (b *MemoryBroker) Unsubscribe(_ context.Context, topic Topic, subscription string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], subscription)
	return nil
}

// Subscriptions reports the subscription names registered on topic.
func (b *MemoryBroker) Subscriptions(topic Topic) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs[topic]))
	for name := range b.subs[topic] {
		names = append(names, name)
	}
	return names
}
