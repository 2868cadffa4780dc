package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tastetrail/internal/domain/deadletter"
)

// DeadLetterRepository manages the dead_letter_events table.
type DeadLetterRepository struct {
	db *gorm.DB
}

func NewDeadLetterRepository(db *gorm.DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// Record stores a dead letter. Recording the same event id twice is a no-op
// so redeliveries racing into the sink cannot duplicate rows.
func (r *DeadLetterRepository) Record(ctx context.Context, event *deadletter.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

// Depth reports how many dead letters are waiting, total and per type.
func (r *DeadLetterRepository) Depth(ctx context.Context) (int64, map[string]int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&deadletter.Event{}).Count(&total).Error; err != nil {
		return 0, nil, err
	}

	type row struct {
		EventType string
		Count     int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&deadletter.Event{}).
		Select("event_type, count(*) as count").
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return 0, nil, err
	}

	byType := make(map[string]int64, len(rows))
	for _, rw := range rows {
		byType[rw.EventType] = rw.Count
	}
	return total, byType, nil
}

// ListUnarchivedBefore returns aged rows that still need an archive copy.
func (r *DeadLetterRepository) ListUnarchivedBefore(ctx context.Context, cutoff time.Time, limit int) ([]deadletter.Event, error) {
	var events []deadletter.Event
	err := r.db.WithContext(ctx).
		Where("archived_at IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *DeadLetterRepository) MarkArchived(ctx context.Context, id uuid.UUID, archivedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&deadletter.Event{}).
		Where("id = ?", id).
		Update("archived_at", archivedAt).Error
}

// DeleteArchivedBefore removes rows that have an archive copy and are past
// retention.
func (r *DeadLetterRepository) DeleteArchivedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("archived_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&deadletter.Event{})
	return result.RowsAffected, result.Error
}
