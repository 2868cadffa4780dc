package consumer

import (
	"context"

	"go.uber.org/zap"

	"tastetrail/internal/domain/deadletter"
	"tastetrail/internal/repository"
)

// Sink is where messages go to die: validation failures, exhausted retries,
// and over-delivered messages all land here with enough context to diagnose
// them later.
type Sink struct {
	repo *repository.DeadLetterRepository
	log  *zap.Logger
}

func NewSink(repo *repository.DeadLetterRepository, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.L()
	}
	return &Sink{repo: repo, log: log}
}

// Record stores one dead letter. Duplicate event ids are absorbed by the
// repository so concurrent redeliveries cannot double-record.
func (s *Sink) Record(ctx context.Context, eventID, eventType string, payload []byte, reason, source string, retryCount, deliveryCount int) error {
	err := s.repo.Record(ctx, &deadletter.Event{
		EventID:       eventID,
		EventType:     eventType,
		Payload:       payload,
		Reason:        reason,
		Source:        source,
		RetryCount:    retryCount,
		DeliveryCount: deliveryCount,
	})
	if err != nil {
		s.log.Error("failed to record dead letter",
			zap.String("event_id", eventID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return err
	}
	s.log.Warn("event dead-lettered",
		zap.String("event_id", eventID),
		zap.String("event_type", eventType),
		zap.String("reason", reason))
	return nil
}
