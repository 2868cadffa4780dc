package outbox

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tastetrail/internal/config"
	"tastetrail/internal/domain/deadletter"
	domain "tastetrail/internal/domain/outbox"
	"tastetrail/internal/events"
	"tastetrail/internal/repository"
)

// Relay moves committed outbox rows onto the bus. Multiple instances can
// run against the same table; row leases keep them from double-publishing
// within a lease window. Delivery stays at-least-once either way.
type Relay struct {
	repo       *repository.OutboxRepository
	deadRepo   *repository.DeadLetterRepository
	publisher  events.Publisher
	cfg        config.RelayConfig
	instanceID string
	log        *zap.Logger
}

func NewRelay(repo *repository.OutboxRepository, deadRepo *repository.DeadLetterRepository, publisher events.Publisher, cfg config.RelayConfig, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.L()
	}
	host, _ := os.Hostname()
	return &Relay{
		repo:       repo,
		deadRepo:   deadRepo,
		publisher:  publisher,
		cfg:        cfg,
		instanceID: fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
		log:        log,
	}
}

// Run polls for pending events and sweeps published ones until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	r.log.Info("outbox relay started",
		zap.String("instance", r.instanceID),
		zap.Duration("poll_interval", r.cfg.PollInterval))

	poll := time.NewTicker(r.cfg.PollInterval)
	defer poll.Stop()
	sweep := time.NewTicker(r.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopping", zap.String("instance", r.instanceID))
			return
		case <-poll.C:
			if _, err := r.DrainOnce(ctx); err != nil {
				r.log.Error("outbox poll failed", zap.Error(err))
			}
		case <-sweep.C:
			if err := r.SweepOnce(ctx); err != nil {
				r.log.Error("outbox sweep failed", zap.Error(err))
			}
		}
	}
}

// DrainOnce publishes one batch of pending events and returns how many were
// published.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	pending, err := r.repo.GetPending(ctx, r.cfg.BatchSize, now, r.cfg.LeaseTTL)
	if err != nil {
		return 0, fmt.Errorf("fetch pending events: %w", err)
	}

	published := 0
	for _, event := range pending {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		ok, err := r.repo.Claim(ctx, event.ID, r.instanceID, time.Now().UTC(), r.cfg.LeaseTTL)
		if err != nil {
			return published, fmt.Errorf("claim event %s: %w", event.ID, err)
		}
		if !ok {
			continue
		}
		if r.publishOne(ctx, event) {
			published++
		}
	}
	return published, nil
}

func (r *Relay) publishOne(ctx context.Context, event domain.OutboxEvent) bool {
	env, err := envelopeFor(event)
	if err == nil {
		err = r.publisher.Publish(ctx, env)
	}
	if err == nil {
		if err := r.repo.MarkPublished(ctx, event.ID, time.Now().UTC()); err != nil {
			r.log.Error("failed to mark event published",
				zap.String("event_id", event.ID.String()), zap.Error(err))
		}
		return true
	}

	r.log.Warn("publish attempt failed",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.EventType),
		zap.Int("retry_count", event.RetryCount),
		zap.Error(err))

	// RetryCount counts prior failed attempts; this failure makes one more.
	if event.RetryCount+1 >= r.cfg.MaxRetries {
		r.parkEvent(ctx, event, err)
		return false
	}
	if markErr := r.repo.MarkPublishFailed(ctx, event.ID, err.Error()); markErr != nil {
		r.log.Error("failed to record publish failure",
			zap.String("event_id", event.ID.String()), zap.Error(markErr))
	}
	return false
}

// parkEvent moves an event past its retry budget to FAILED and mirrors it
// into the dead-letter sink so operators see it alongside consumer failures.
func (r *Relay) parkEvent(ctx context.Context, event domain.OutboxEvent, cause error) {
	if err := r.repo.MarkFailed(ctx, event.ID, cause.Error()); err != nil {
		r.log.Error("failed to park event",
			zap.String("event_id", event.ID.String()), zap.Error(err))
		return
	}
	dl := &deadletter.Event{
		EventID:    event.ID.String(),
		EventType:  event.EventType,
		Payload:    event.Payload,
		Reason:     fmt.Sprintf("relay retries exhausted: %s", cause.Error()),
		Source:     event.Source,
		RetryCount: event.RetryCount + 1,
	}
	if err := r.deadRepo.Record(ctx, dl); err != nil {
		r.log.Error("failed to dead-letter parked event",
			zap.String("event_id", event.ID.String()), zap.Error(err))
		return
	}
	r.log.Error("outbox event parked after exhausting retries",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.EventType),
		zap.Int("retries", event.RetryCount+1))
}

// SweepOnce deletes published rows older than the retention window.
func (r *Relay) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-r.cfg.Retention)
	deleted, err := r.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		r.log.Info("swept published outbox events",
			zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return nil
}

func envelopeFor(event domain.OutboxEvent) (events.Envelope, error) {
	eventType, err := events.ParseType(event.EventType)
	if err != nil {
		return events.Envelope{}, err
	}
	return events.Envelope{
		EventID:   event.ID.String(),
		Timestamp: event.CreatedAt,
		EventType: eventType,
		Source:    event.Source,
		Version:   events.Version,
		TraceID:   event.TraceID,
		Status:    "SUCCESS",
		Payload:   event.Payload,
	}, nil
}
