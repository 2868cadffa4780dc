package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tastetrail/internal/domain/outbox"
	tastetrail_errors "tastetrail/pkg/errors"
)

// OutboxRepository manages the outbox_events table. Create runs inside the
// caller's transaction; everything else is used by the relay.
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create appends an event inside the given transaction so the event commits
// or rolls back with the domain write it describes.
func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, event *outbox.OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = outbox.StatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return tx.WithContext(ctx).Create(event).Error
}

// GetPending returns up to limit PENDING events in commit order, skipping
// rows another relay instance holds a live lease on.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int, now time.Time, leaseTTL time.Duration) ([]outbox.OutboxEvent, error) {
	cutoff := now.Add(-leaseTTL)
	var events []outbox.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Where("claimed_at IS NULL OR claimed_at < ?", cutoff).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Claim takes an exclusive lease on a pending event. It returns false when
// another instance won the race.
func (r *OutboxRepository) Claim(ctx context.Context, id uuid.UUID, claimedBy string, now time.Time, leaseTTL time.Duration) (bool, error) {
	cutoff := now.Add(-leaseTTL)
	result := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id = ? AND status = ?", id, outbox.StatusPending).
		Where("claimed_at IS NULL OR claimed_at < ?", cutoff).
		Updates(map[string]interface{}{
			"claimed_by": claimedBy,
			"claimed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkPublished transitions a claimed event to PUBLISHED.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id = ? AND status = ?", id, outbox.StatusPending).
		Updates(map[string]interface{}{
			"status":       outbox.StatusPublished,
			"published_at": publishedAt,
			"error":        "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tastetrail_errors.ErrNotFound
	}
	return nil
}

// MarkPublishFailed records a failed publish attempt and releases the lease
// so a later poll retries the event.
func (r *OutboxRepository) MarkPublishFailed(ctx context.Context, id uuid.UUID, cause string) error {
	return r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"error":       cause,
			"claimed_by":  "",
			"claimed_at":  nil,
		}).Error
}

// MarkFailed parks an event whose retry budget is exhausted. FAILED rows are
// never picked up by the poll loop again.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	result := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": outbox.StatusFailed,
			"error":  cause,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tastetrail_errors.ErrNotFound
	}
	return nil
}

// DeletePublishedBefore removes published rows older than the cutoff and
// returns how many were swept.
func (r *OutboxRepository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND published_at < ?", outbox.StatusPublished, cutoff).
		Delete(&outbox.OutboxEvent{})
	return result.RowsAffected, result.Error
}

// CountByStatus reports queue depth per status for the ops endpoints.
func (r *OutboxRepository) CountByStatus(ctx context.Context, status outbox.Status) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&outbox.OutboxEvent{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}
