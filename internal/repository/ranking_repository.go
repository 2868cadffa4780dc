package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tastetrail/internal/domain/ranking"
	tastetrail_errors "tastetrail/pkg/errors"
)

// RankingRepository manages rankings, their append-only history, and the
// per-user per-dish stats. The engine constructs one per transaction so
// every method runs inside that transaction.
type RankingRepository struct {
	db *gorm.DB
}

func NewRankingRepository(db *gorm.DB) *RankingRepository {
	return &RankingRepository{db: db}
}

func (r *RankingRepository) CreateSubmission(ctx context.Context, tx *gorm.DB, sub *ranking.Submission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	if err := tx.WithContext(ctx).Create(sub).Error; err != nil {
		if isUniqueViolation(err) {
			return tastetrail_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByTriple fetches the current ranking for (user, dish, restaurant).
func (r *RankingRepository) GetByTriple(ctx context.Context, userID, dishID, restaurantID uuid.UUID) (*ranking.UserRanking, error) {
	var rk ranking.UserRanking
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND dish_id = ? AND restaurant_id = ?", userID, dishID, restaurantID).
		First(&rk).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tastetrail_errors.ErrNotFound
		}
		return nil, err
	}
	return &rk, nil
}

func (r *RankingRepository) CreateRanking(ctx context.Context, rk *ranking.UserRanking) error {
	if rk.ID == uuid.Nil {
		rk.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(rk).Error; err != nil {
		if isUniqueViolation(err) {
			return tastetrail_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *RankingRepository) UpdateRanking(ctx context.Context, rk *ranking.UserRanking) error {
	result := r.db.WithContext(ctx).
		Model(&ranking.UserRanking{}).
		Where("id = ?", rk.ID).
		Updates(map[string]interface{}{
			"rank":         rk.Rank,
			"taste_status": rk.TasteStatus,
			"updated_at":   rk.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tastetrail_errors.ErrNotFound
	}
	return nil
}

// GetHistoryByEvent is the replay guard: a history row keyed by the event id
// means this event was already applied. Callers compare the row against the
// incoming payload before declaring the replay benign.
func (r *RankingRepository) GetHistoryByEvent(ctx context.Context, eventID uuid.UUID) (*ranking.HistoryEntry, error) {
	var entry ranking.HistoryEntry
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tastetrail_errors.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *RankingRepository) AppendHistory(ctx context.Context, entry *ranking.HistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if isUniqueViolation(err) {
			return tastetrail_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *RankingRepository) GetStats(ctx context.Context, userID, dishID uuid.UUID) (*ranking.UserDishStats, error) {
	var stats ranking.UserDishStats
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND dish_id = ?", userID, dishID).
		First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tastetrail_errors.ErrNotFound
		}
		return nil, err
	}
	return &stats, nil
}

func (r *RankingRepository) CreateStats(ctx context.Context, stats *ranking.UserDishStats) error {
	if stats.ID == uuid.Nil {
		stats.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(stats).Error
}

// BumpStats increments the counters for an existing stats row. Restaurant
// delta is 0 for re-rankings at a known restaurant.
func (r *RankingRepository) BumpStats(ctx context.Context, id uuid.UUID, rankingDelta, restaurantDelta int, rankedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&ranking.UserDishStats{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_rankings":    gorm.Expr("total_rankings + ?", rankingDelta),
			"total_restaurants": gorm.Expr("total_restaurants + ?", restaurantDelta),
			"last_ranked_at":    rankedAt,
		}).Error
}

// CountRankings returns how many current rankings a user holds.
func (r *RankingRepository) CountRankings(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ranking.UserRanking{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CountDishRankingsAtRestaurant returns how many users currently rank the
// dish at the restaurant, used to detect the dish's first ranking there.
func (r *RankingRepository) CountDishRankingsAtRestaurant(ctx context.Context, dishID, restaurantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ranking.UserRanking{}).
		Where("dish_id = ? AND restaurant_id = ?", dishID, restaurantID).
		Count(&count).Error
	return count, err
}

// CountDistinctDishes returns how many distinct dishes a user has ranked.
func (r *RankingRepository) CountDistinctDishes(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ranking.UserRanking{}).
		Where("user_id = ?", userID).
		Distinct("dish_id").
		Count(&count).Error
	return count, err
}
