package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tastetrail/internal/domain/badge"
	tastetrail_errors "tastetrail/pkg/errors"
)

// BadgeRepository manages user badge progress and award notifications.
type BadgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

func (r *BadgeRepository) GetUserBadge(ctx context.Context, userID uuid.UUID, badgeType badge.Type) (*badge.UserBadge, error) {
	var ub badge.UserBadge
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND badge_type = ?", userID, badgeType).
		First(&ub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tastetrail_errors.ErrNotFound
		}
		return nil, err
	}
	return &ub, nil
}

func (r *BadgeRepository) CreateUserBadge(ctx context.Context, ub *badge.UserBadge) error {
	if ub.ID == uuid.Nil {
		ub.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(ub).Error; err != nil {
		if isUniqueViolation(err) {
			return tastetrail_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// AdvanceProgress raises current_progress on an open badge row. Progress
// never moves backwards; a false return means a concurrent writer already
// recorded equal or higher progress, or the badge is completed.
func (r *BadgeRepository) AdvanceProgress(ctx context.Context, id uuid.UUID, progress int, updatedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&badge.UserBadge{}).
		Where("id = ? AND current_progress < ? AND is_completed = ?", id, progress, false).
		Updates(map[string]interface{}{
			"current_progress": progress,
			"updated_at":       updatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CompleteBadge flips a badge to completed. The condition makes the flip
// happen exactly once across concurrent transactions; a false return means
// another transaction won and owns the award event.
func (r *BadgeRepository) CompleteBadge(ctx context.Context, id uuid.UUID, progress int, completedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&badge.UserBadge{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]interface{}{
			"current_progress": progress,
			"is_completed":     true,
			"completed_at":     completedAt,
			"updated_at":       completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// NotificationExistsForEvent reports whether a BADGE_AWARDED event was
// already recorded, keyed by its event id.
func (r *BadgeRepository) NotificationExistsForEvent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&badge.AwardNotification{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count > 0, err
}

func (r *BadgeRepository) CreateNotification(ctx context.Context, n *badge.AwardNotification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		if isUniqueViolation(err) {
			return tastetrail_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}
