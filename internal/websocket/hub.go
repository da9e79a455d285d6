package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/events"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	deliveryBufferSize = 1024
	laneBufferSize     = 256
	dispatchLanes      = 16
	filterTimeout      = 2 * time.Second
)

// BlockChecker answers whether two users have a block in either direction.
type BlockChecker interface {
	IsBlocked(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// Hub writes broker deliveries to local sockets. Broker subscribers only
// enqueue into Deliveries; Run fans them out to a fixed set of dispatch
// lanes keyed by room or recipient, so deliveries for one key stay in order
// and a slow block lookup only holds up its own lane.
type Hub struct {
	registries *Registries
	filter     BlockChecker
	deliveries chan events.Message
	log        *logger.Logger
}

func NewHub(registries *Registries, filter BlockChecker, l *logger.Logger) *Hub {
	return &Hub{
		registries: registries,
		filter:     filter,
		deliveries: make(chan events.Message, deliveryBufferSize),
		log:        l.Named("hub"),
	}
}

func (h *Hub) Registries() *Registries {
	return h.registries
}

// Deliveries is the channel broker subscriptions forward into.
func (h *Hub) Deliveries() chan<- events.Message {
	return h.deliveries
}

func (h *Hub) Run(ctx context.Context) {
	lanes := make([]chan events.Message, dispatchLanes)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan events.Message, laneBufferSize)
		wg.Add(1)
		go func(lane <-chan events.Message) {
			defer wg.Done()
			for msg := range lane {
				h.dispatch(ctx, msg)
			}
		}(lanes[i])
	}
	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.deliveries:
			select {
			case lanes[laneFor(routingKey(msg.Routing))] <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// routingKey is the room for room traffic and the first recipient otherwise.
func routingKey(r events.Routing) string {
	if r.RoomID != "" {
		return r.RoomID
	}
	if len(r.RecipientIDs) > 0 {
		return r.RecipientIDs[0]
	}
	return ""
}

func laneFor(key string) int {
	return int(xxhash.Sum64String(key) % dispatchLanes)
}

func (h *Hub) dispatch(ctx context.Context, msg events.Message) {
	var targets []Registration
	switch msg.Topic {
	case events.TopicChatMessages:
		targets = h.registries.Rooms.LocalSocketsFor(msg.Routing.RoomID)
	case events.TopicChatRoomUpdates:
		for _, id := range msg.Routing.RecipientIDs {
			targets = append(targets, h.registries.Updates.LocalSocketsFor(id)...)
		}
	case events.TopicNotifications:
		for _, id := range msg.Routing.RecipientIDs {
			targets = append(targets, h.registries.Notifications.LocalSocketsFor(id)...)
		}
	default:
		h.log.Warnf("delivery on unknown topic %q dropped", msg.Topic)
		return
	}
	if len(targets) == 0 {
		return
	}

	// Notifications are filtered by mute before publishing; chat traffic is
	// filtered here so a block created after the event was published still
	// applies.
	var sender uuid.UUID
	if msg.Topic != events.TopicNotifications {
		sender, _ = uuid.Parse(msg.Routing.SenderID)
	}
	blocked := make(map[uuid.UUID]bool)

	for _, t := range targets {
		if sender != uuid.Nil && t.UserID != sender {
			isBlocked, seen := blocked[t.UserID]
			if !seen {
				isBlocked = h.isBlocked(ctx, sender, t.UserID)
				blocked[t.UserID] = isBlocked
			}
			if isBlocked {
				continue
			}
		}
		if err := t.Socket.Send(msg.Payload); err != nil {
			h.log.Logger.Warn("push failed, closing socket",
				zap.String("topic", string(msg.Topic)),
				zap.String("user_id", t.UserID.String()),
				zap.String("client_id", t.Socket.ID()),
				zap.Error(err),
			)
			t.Socket.Close(websocket.CloseTryAgainLater, "send queue overflow")
		}
	}
}

// isBlocked fails closed: when the lookup errors the push is skipped.
func (h *Hub) isBlocked(ctx context.Context, a, b uuid.UUID) bool {
	ctx, cancel := context.WithTimeout(ctx, filterTimeout)
	defer cancel()
	blocked, err := h.filter.IsBlocked(ctx, a, b)
	if err != nil {
		h.log.Warnf("block lookup %s/%s: %v", a, b, err)
		return true
	}
	return blocked
}

// Consume opens this instance's subscription on every topic and forwards
// deliveries into the hub until ctx is done.
func (h *Hub) Consume(ctx context.Context, sub events.Subscriber, instanceID string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range events.Topics() {
		topic := topic
		g.Go(func() error {
			return sub.Subscribe(gctx, topic, events.SubscriptionName(topic, instanceID), h.deliveries)
		})
	}
	return g.Wait()
}

// Unsubscribe removes this instance's subscriptions, typically on shutdown.
func (h *Hub) Unsubscribe(ctx context.Context, sub events.Subscriber, instanceID string) error {
	var errs []error
	for _, topic := range events.Topics() {
		if err := sub.Unsubscribe(ctx, topic, events.SubscriptionName(topic, instanceID)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
