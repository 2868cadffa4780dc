package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tastetrail/internal/domain/outbox"
	"tastetrail/internal/events"
	tastetrail_errors "tastetrail/pkg/errors"
)

func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a valid uuid", tastetrail_errors.ErrInvalidInput, s)
	}
	return id, nil
}

// newOutboxEvent builds a pending outbox row. The generated id doubles as
// the notification's event id all the way to the consumers.
func newOutboxEvent(eventType events.Type, aggregateID string, payload interface{}, source, traceID string) (*outbox.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &outbox.OutboxEvent{
		ID:          uuid.New(),
		EventType:   string(eventType),
		AggregateID: aggregateID,
		Payload:     data,
		Source:      source,
		TraceID:     traceID,
		Status:      outbox.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
