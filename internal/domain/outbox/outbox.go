package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of an outbox event
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPublished Status = "PUBLISHED"
	StatusFailed    Status = "FAILED"
)

// OutboxEvent stores domain events waiting to be published to the bus.
// A row is written in the same transaction as the domain mutation it
// describes; only the relay mutates it afterwards.
type OutboxEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventType   string    `gorm:"type:varchar(50);not null;index"`
	AggregateID string    `gorm:"type:varchar(64);not null"`
	Payload     []byte    `gorm:"type:jsonb;not null"`
	Source      string    `gorm:"type:varchar(64);not null"`
	TraceID     string    `gorm:"type:varchar(64)"`
	Status      Status    `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	RetryCount  int       `gorm:"default:0"`
	Error       string    `gorm:"type:text"`
	ClaimedBy   string    `gorm:"type:varchar(64)"`
	ClaimedAt   *time.Time
	CreatedAt   time.Time `gorm:"not null;index"`
	PublishedAt *time.Time
}

// TableName returns the database table name
func (OutboxEvent) TableName() string {
	return "outbox_events"
}
