package events

import (
	"context"
	"fmt"
)

type Publisher interface {
	Publish(ctx context.Context, topic Topic, payload []byte, routing Routing) error
}

type Subscriber interface {
	// Subscribe creates the named subscription if it does not exist yet and
	// forwards every message published on topic into out until ctx is done.
	// Messages are acknowledged before they are forwarded.
	Subscribe(ctx context.Context, topic Topic, subscription string, out chan<- Message) error
	// Unsubscribe deletes the named subscription.
	Unsubscribe(ctx context.Context, topic Topic, subscription string) error
}

type Broker interface {
	Publisher
	Subscriber
}

// SubscriptionName is the per-instance subscription name for a topic.
func SubscriptionName(topic Topic, instanceID string) string {
	return fmt.Sprintf("%s.%s", topic, instanceID)
}
