package events

import (
	"encoding/json"
	"fmt"
	"time"

	tastetrail_errors "tastetrail/pkg/errors"
)

// Version is the envelope schema version stamped on every notification.
const Version = "v1.0"

// Envelope is the notification format used on the bus and in the outbox.
type Envelope struct {
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	EventType Type            `json:"event_type"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
	TraceID   string          `json:"trace_id"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
}

// Validate checks the required envelope fields. Failures are non-retriable:
// a malformed envelope will not improve on redelivery.
func (e *Envelope) Validate() error {
	if e.EventID == "" {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: missing event_id", tastetrail_errors.ErrInvalidInput))
	}
	if e.Timestamp.IsZero() {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: missing timestamp", tastetrail_errors.ErrInvalidInput))
	}
	if _, err := ParseType(string(e.EventType)); err != nil {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: %v", tastetrail_errors.ErrInvalidInput, err))
	}
	if e.Source == "" {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: missing source", tastetrail_errors.ErrInvalidInput))
	}
	if e.Version == "" {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: missing version", tastetrail_errors.ErrInvalidInput))
	}
	if len(e.Payload) == 0 {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: missing payload", tastetrail_errors.ErrInvalidInput))
	}
	return nil
}

// Decode parses an envelope off the wire.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, tastetrail_errors.NonRetriable(fmt.Errorf("%w: decode envelope: %v", tastetrail_errors.ErrInvalidInput, err))
	}
	return env, nil
}
