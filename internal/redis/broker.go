package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/events"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stream entry fields. Routing lives in its own fields so a consumer never
// has to decode the payload to route it.
const (
	fieldPayload    = "payload"
	fieldRoomID     = "room_id"
	fieldRecipients = "recipient_ids"
	fieldSenderID   = "sender_id"
)

type StreamConfig struct {
	Prefix     string
	MaxLen     int64         // approximate cap per stream, 0 disables trimming
	Block      time.Duration // XREADGROUP block time per poll
	BatchSize  int64
	BackoffMax time.Duration
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Prefix:     "empathy",
		MaxLen:     10000,
		Block:      5 * time.Second,
		BatchSize:  64,
		BackoffMax: 30 * time.Second,
	}
}

// StreamBroker implements events.Broker on Redis Streams. Each subscription
// is its own consumer group, so every instance sees every entry (fanout) while
// entries published during a brief disconnect are still read on reconnect.
type StreamBroker struct {
	client *goredis.Client
	cfg    StreamConfig
	log    *logger.Logger
}

var _ events.Broker = (*StreamBroker)(nil)

func NewStreamBroker(client *goredis.Client, cfg StreamConfig, l *logger.Logger) *StreamBroker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 30 * time.Second
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	return &StreamBroker{client: client, cfg: cfg, log: l.Named("stream_broker")}
}

func (b *StreamBroker) streamKey(topic events.Topic) string {
	return fmt.Sprintf("%s:%s", b.cfg.Prefix, topic)
}

func (b *StreamBroker) Publish(ctx context.Context, topic events.Topic, payload []byte, routing events.Routing) error {
	args := &goredis.XAddArgs{
		Stream: b.streamKey(topic),
		Values: map[string]interface{}{
			fieldPayload:    payload,
			fieldRoomID:     routing.RoomID,
			fieldRecipients: events.JoinIDs(routing.RecipientIDs),
			fieldSenderID:   routing.SenderID,
		},
	}
	if b.cfg.MaxLen > 0 {
		args.MaxLen = b.cfg.MaxLen
		args.Approx = true
	}
	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", topic, err)
	}
	return nil
}

// Subscribe keeps a consumer group session alive until ctx is done. Any
// session error restarts it under exponential backoff; a successful read
// resets the backoff.
func (b *StreamBroker) Subscribe(ctx context.Context, topic events.Topic, subscription string, out chan<- events.Message) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = b.cfg.BackoffMax
	bo.MaxElapsedTime = 0

	operation := func() error {
		err := b.consume(ctx, topic, subscription, out, bo)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		b.log.Logger.Warn("stream subscription interrupted, retrying",
			zap.String("topic", string(topic)),
			zap.String("subscription", subscription),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (b *StreamBroker) consume(ctx context.Context, topic events.Topic, group string, out chan<- events.Message, bo backoff.BackOff) error {
	stream := b.streamKey(topic)
	if err := b.ensureGroup(ctx, stream, group); err != nil {
		return err
	}

	for ctx.Err() == nil {
		res, err := b.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    group,
			Consumer: group,
			Streams:  []string{stream, ">"},
			Count:    b.cfg.BatchSize,
			Block:    b.cfg.Block,
		}).Result()
		if errors.Is(err, goredis.Nil) {
			bo.Reset()
			continue
		}
		if err != nil {
			return fmt.Errorf("xreadgroup %s: %w", topic, err)
		}
		bo.Reset()

		for _, s := range res {
			if len(s.Messages) == 0 {
				continue
			}
			ids := make([]string, 0, len(s.Messages))
			for _, m := range s.Messages {
				ids = append(ids, m.ID)
			}
			// Acknowledge first: delivery to sockets is best effort and a
			// crash here must not replay the batch to this group forever.
			if err := b.client.XAck(ctx, stream, group, ids...).Err(); err != nil {
				return fmt.Errorf("xack %s: %w", topic, err)
			}
			for _, m := range s.Messages {
				select {
				case out <- decodeEntry(topic, m):
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
	return nil
}

// ensureGroup creates the consumer group positioned at the stream tail. A
// concurrent creator winning the race is not an error.
func (b *StreamBroker) ensureGroup(ctx context.Context, stream, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("xgroup create %s/%s: %w", stream, group, err)
	}
	return nil
}

func (b *StreamBroker) Unsubscribe(ctx context.Context, topic events.Topic, subscription string) error {
	err := b.client.XGroupDestroy(ctx, b.streamKey(topic), subscription).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("xgroup destroy %s: %w", subscription, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func decodeEntry(topic events.Topic, m goredis.XMessage) events.Message {
	return events.Message{
		ID:      m.ID,
		Topic:   topic,
		Payload: []byte(stringField(m.Values, fieldPayload)),
		Routing: events.Routing{
			RoomID:       stringField(m.Values, fieldRoomID),
			RecipientIDs: events.SplitIDs(stringField(m.Values, fieldRecipients)),
			SenderID:     stringField(m.Values, fieldSenderID),
		},
	}
}

func stringField(values map[string]interface{}, key string) string {
	switch v := values[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}
