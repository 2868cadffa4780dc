package consumer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tastetrail/internal/config"
	"tastetrail/internal/events"
	"tastetrail/internal/queue"
	tastetrail_errors "tastetrail/pkg/errors"
	"tastetrail/pkg/logger"
)

// Applier applies one notification to the read side. Implementations must
// be idempotent: the queue delivers at least once.
type Applier interface {
	Apply(ctx context.Context, env events.Envelope) error
}

// Queue is the transport the consumer drains.
type Queue interface {
	Receive(ctx context.Context, max int) ([]queue.Message, error)
	Ack(ctx context.Context, receiptIDs ...string) error
}

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeDeadLettered
	outcomeFailed
)

// Consumer drains one event-type queue in batches. Items in a batch are
// independent: a failing item never blocks its neighbors. Only items that
// were applied or dead-lettered get acknowledged; everything else is left
// pending for redelivery.
type Consumer struct {
	name    string
	queue   Queue
	applier Applier
	sink    *Sink
	breaker *CircuitBreaker
	policy  RetryPolicy
	cfg     config.ConsumerConfig
	log     *zap.Logger
}

func New(name string, q Queue, applier Applier, sink *Sink, cfg config.ConsumerConfig, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.L()
	}
	return &Consumer{
		name:    name,
		queue:   q,
		applier: applier,
		sink:    sink,
		breaker: NewCircuitBreaker(cfg.FailureThreshold, cfg.ResetTimeout),
		policy: RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
			Jitter:      cfg.JitterFactor,
		},
		cfg: cfg,
		log: log.With(zap.String("consumer", name)),
	}
}

// Breaker exposes the consumer's circuit breaker for ops endpoints.
func (c *Consumer) Breaker() *CircuitBreaker {
	return c.breaker
}

// Run receives and processes batches until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("consumer started", zap.Int("batch_size", c.cfg.BatchSize))
	for {
		if ctx.Err() != nil {
			c.log.Info("consumer stopping")
			return
		}
		msgs, err := c.queue.Receive(ctx, c.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopping")
				return
			}
			c.log.Error("receive failed", zap.Error(err))
			time.Sleep(c.cfg.BaseDelay)
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		if err := c.ProcessBatch(ctx, msgs); err != nil {
			c.log.Warn("batch failed, messages left for redelivery",
				zap.Int("size", len(msgs)), zap.Error(err))
		}
	}
}

// ProcessBatch handles one batch with bounded fan-out. It returns an error
// only when every item failed; partial failure is a batch success because
// the failed items were dead-lettered or left pending individually.
func (c *Consumer) ProcessBatch(ctx context.Context, msgs []queue.Message) error {
	outcomes := make([]outcome, len(msgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.FanOut)
	for i, msg := range msgs {
		i, msg := i, msg
		g.Go(func() error {
			outcomes[i] = c.processOne(gctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o == outcomeFailed {
			failed++
		}
	}
	if failed == len(msgs) {
		return fmt.Errorf("all %d messages in batch failed", len(msgs))
	}
	return nil
}

func (c *Consumer) processOne(ctx context.Context, msg queue.Message) outcome {
	if msg.DeliveryCount > c.cfg.MaxDeliveries {
		return c.deadLetterRaw(ctx, msg, fmt.Sprintf("delivery count %d exceeds limit %d", msg.DeliveryCount, c.cfg.MaxDeliveries))
	}

	env, err := events.Decode(msg.Raw)
	if err == nil {
		err = env.Validate()
	}
	if err != nil {
		return c.deadLetterRaw(ctx, msg, err.Error())
	}
	ctx = logger.WithTraceID(ctx, env.TraceID)

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := c.breaker.Allow(); err != nil {
			// Open circuit: fail fast without burning retry attempts, the
			// message stays pending until the downstream recovers.
			c.log.Debug("circuit open, skipping message",
				zap.String("event_id", env.EventID))
			return outcomeFailed
		}

		err := c.applier.Apply(ctx, env)
		if err == nil {
			c.breaker.Success()
			c.ack(ctx, msg)
			return outcomeApplied
		}
		if tastetrail_errors.IsNonRetriable(err) {
			return c.deadLetterEnvelope(ctx, msg, env, err.Error())
		}

		c.breaker.Failure()
		lastErr = err
		c.log.Warn("apply attempt failed",
			zap.String("event_id", env.EventID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < c.policy.MaxAttempts {
			select {
			case <-ctx.Done():
				return outcomeFailed
			case <-time.After(c.policy.Delay(attempt)):
			}
		}
	}

	if msg.DeliveryCount >= c.cfg.MaxDeliveries {
		reason := fmt.Sprintf("retries exhausted on final delivery: %s", lastErr)
		return c.deadLetterEnvelope(ctx, msg, env, reason)
	}
	return outcomeFailed
}

func (c *Consumer) deadLetterEnvelope(ctx context.Context, msg queue.Message, env events.Envelope, reason string) outcome {
	if err := c.sink.Record(ctx, env.EventID, string(env.EventType), msg.Raw, reason, env.Source, c.policy.MaxAttempts, msg.DeliveryCount); err != nil {
		return outcomeFailed
	}
	c.ack(ctx, msg)
	return outcomeDeadLettered
}

// deadLetterRaw handles messages whose envelope never decoded; the receipt
// id stands in for the event id.
func (c *Consumer) deadLetterRaw(ctx context.Context, msg queue.Message, reason string) outcome {
	eventID := "receipt:" + msg.ReceiptID
	eventType := "UNKNOWN"
	if env, err := events.Decode(msg.Raw); err == nil {
		if env.EventID != "" {
			eventID = env.EventID
		}
		if env.EventType != "" {
			eventType = string(env.EventType)
		}
	}
	if err := c.sink.Record(ctx, eventID, eventType, msg.Raw, reason, "", 0, msg.DeliveryCount); err != nil {
		return outcomeFailed
	}
	c.ack(ctx, msg)
	return outcomeDeadLettered
}

func (c *Consumer) ack(ctx context.Context, msg queue.Message) {
	if err := c.queue.Ack(ctx, msg.ReceiptID); err != nil {
		// The message will redeliver; appliers are idempotent so this only
		// costs a duplicate pass.
		c.log.Error("ack failed", zap.String("receipt", msg.ReceiptID), zap.Error(err))
	}
}
