package queue

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tastetrail/internal/events"
)

// Message is one queue delivery: the decoded envelope plus the transport
// metadata the consumer needs to ack it or escalate it.
type Message struct {
	// ReceiptID is the stream entry id, used to acknowledge the message.
	ReceiptID string

	// DeliveryCount is how many times this message has been delivered to
	// the group, including this delivery.
	DeliveryCount int

	// Raw is the serialized envelope as read off the stream. Decoding is
	// left to the consumer so malformed entries can be dead-lettered with
	// their original bytes.
	Raw []byte
}

// StreamQueue drains one event-type stream through a consumer group.
// Receive first reclaims messages another consumer left pending (crashed
// worker), then reads new entries.
type StreamQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	minIdle  time.Duration
	block    time.Duration
	log      *zap.Logger
}

func NewStreamQueue(client *redis.Client, eventType events.Type, group, consumer string, minIdle, block time.Duration, log *zap.Logger) *StreamQueue {
	if log == nil {
		log = zap.L()
	}
	return &StreamQueue{
		client:   client,
		stream:   eventType.StreamKey(),
		group:    group,
		consumer: consumer,
		minIdle:  minIdle,
		block:    block,
		log:      log,
	}
}

// Ensure creates the consumer group if it does not exist yet.
func (q *StreamQueue) Ensure(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Receive returns up to max messages. Redeliveries of stale pending entries
// come first, each carrying its delivery count; the remainder is filled with
// fresh entries (delivery count 1).
func (q *StreamQueue) Receive(ctx context.Context, max int) ([]Message, error) {
	msgs, err := q.claimStale(ctx, max)
	if err != nil {
		return nil, err
	}

	if len(msgs) < max {
		fresh, err := q.readNew(ctx, max-len(msgs))
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, fresh...)
	}

	return msgs, nil
}

// Ack acknowledges processed messages so the group never redelivers them.
func (q *StreamQueue) Ack(ctx context.Context, receiptIDs ...string) error {
	if len(receiptIDs) == 0 {
		return nil
	}
	return q.client.XAck(ctx, q.stream, q.group, receiptIDs...).Err()
}

func (q *StreamQueue) claimStale(ctx context.Context, max int) ([]Message, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Idle:   q.minIdle,
		Start:  "-",
		End:    "+",
		Count:  int64(max),
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(pending))
	deliveries := make(map[string]int, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
		deliveries[p.ID] = int(p.RetryCount)
	}

	claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: q.consumer,
		MinIdle:  q.minIdle,
		Messages: ids,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(claimed))
	for _, m := range claimed {
		raw, ok := m.Values[events.EnvelopeField()].(string)
		if !ok {
			// Entry without an envelope field cannot be processed; drop it
			// from the group so it stops being redelivered.
			q.log.Warn("dropping stream entry without envelope field",
				zap.String("stream", q.stream), zap.String("id", m.ID))
			_ = q.Ack(ctx, m.ID)
			continue
		}
		msgs = append(msgs, Message{
			ReceiptID:     m.ID,
			DeliveryCount: deliveries[m.ID],
			Raw:           []byte(raw),
		})
	}
	return msgs, nil
}

func (q *StreamQueue) readNew(ctx context.Context, max int) ([]Message, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(max),
		Block:    q.block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var msgs []Message
	for _, s := range streams {
		for _, m := range s.Messages {
			raw, ok := m.Values[events.EnvelopeField()].(string)
			if !ok {
				q.log.Warn("dropping stream entry without envelope field",
					zap.String("stream", q.stream), zap.String("id", m.ID))
				_ = q.Ack(ctx, m.ID)
				continue
			}
			msgs = append(msgs, Message{
				ReceiptID:     m.ID,
				DeliveryCount: 1,
				Raw:           []byte(raw),
			})
		}
	}
	return msgs, nil
}
