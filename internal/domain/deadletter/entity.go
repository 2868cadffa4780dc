package deadletter

import (
	"time"

	"github.com/google/uuid"
)

// Event is a notification that exhausted its retries or was judged
// non-retriable. Rows are kept for manual inspection; a sweep archives
// aged rows to object storage before deleting them.
type Event struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID       string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	EventType     string    `gorm:"type:varchar(50);not null;index"`
	Payload       []byte    `gorm:"type:jsonb;not null"`
	Reason        string    `gorm:"type:text;not null"`
	Source        string    `gorm:"type:varchar(64)"`
	RetryCount    int       `gorm:"default:0"`
	DeliveryCount int       `gorm:"default:0"`
	CreatedAt     time.Time `gorm:"not null;index"`
	ArchivedAt    *time.Time
}

func (Event) TableName() string {
	return "dead_letter_events"
}
