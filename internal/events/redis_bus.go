package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// envelopeField is the stream entry field carrying the serialized envelope.
const envelopeField = "envelope"

// RedisStreamBus implements Publisher using Redis Streams. Each event type
// routes to its own stream; consumer groups on those streams give
// at-least-once delivery with per-item acknowledgment.
type RedisStreamBus struct {
	client *redis.Client
	maxLen int64
}

func NewRedisStreamBus(client *redis.Client) *RedisStreamBus {
	return &RedisStreamBus{
		client: client,
		maxLen: 1_000_000,
	}
}

func (b *RedisStreamBus) Publish(ctx context.Context, env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: env.EventType.StreamKey(),
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]interface{}{envelopeField: data},
	}).Err()
}

// EnvelopeField exposes the stream field name to the queue reader.
func EnvelopeField() string {
	return envelopeField
}
