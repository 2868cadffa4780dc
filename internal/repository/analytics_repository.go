package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tastetrail/internal/domain/analytics"
	tastetrail_errors "tastetrail/pkg/errors"
)

// AnalyticsRepository maintains the incremental summary tables. Increments
// use read-then-bump inside the engine's transaction so missing rows are
// created on first touch.
type AnalyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// BumpDish adds one ranking to a dish summary. newUser is true when this is
// the user's first ranking of the dish at any restaurant.
func (r *AnalyticsRepository) BumpDish(ctx context.Context, dishID uuid.UUID, newUser bool, rankedAt time.Time) error {
	var summary analytics.DishSummary
	err := r.db.WithContext(ctx).Where("dish_id = ?", dishID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		summary = analytics.DishSummary{
			DishID:        dishID,
			TotalRankings: 1,
			LastRankedAt:  &rankedAt,
			UpdatedAt:     rankedAt,
		}
		if newUser {
			summary.TotalUsers = 1
		}
		return r.db.WithContext(ctx).Create(&summary).Error
	}
	if err != nil {
		return err
	}

	userDelta := 0
	if newUser {
		userDelta = 1
	}
	return r.db.WithContext(ctx).
		Model(&analytics.DishSummary{}).
		Where("dish_id = ?", dishID).
		Updates(map[string]interface{}{
			"total_rankings": gorm.Expr("total_rankings + 1"),
			"total_users":    gorm.Expr("total_users + ?", userDelta),
			"last_ranked_at": rankedAt,
			"updated_at":     rankedAt,
		}).Error
}

// BumpDishViews adds best-effort view counts to a dish summary.
func (r *AnalyticsRepository) BumpDishViews(ctx context.Context, dishID uuid.UUID, views int) error {
	result := r.db.WithContext(ctx).
		Model(&analytics.DishSummary{}).
		Where("dish_id = ?", dishID).
		Updates(map[string]interface{}{
			"total_views": gorm.Expr("total_views + ?", views),
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.db.WithContext(ctx).Create(&analytics.DishSummary{
			DishID:     dishID,
			TotalViews: views,
			UpdatedAt:  time.Now().UTC(),
		}).Error
	}
	return nil
}

// BumpRestaurant adds one ranking to a restaurant summary. newDish is true
// when this dish had no prior ranking at this restaurant.
func (r *AnalyticsRepository) BumpRestaurant(ctx context.Context, restaurantID uuid.UUID, newDish bool, rankedAt time.Time) error {
	var summary analytics.RestaurantSummary
	err := r.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		summary = analytics.RestaurantSummary{
			RestaurantID:  restaurantID,
			TotalRankings: 1,
			LastRankedAt:  &rankedAt,
			UpdatedAt:     rankedAt,
		}
		if newDish {
			summary.DishesRanked = 1
		}
		return r.db.WithContext(ctx).Create(&summary).Error
	}
	if err != nil {
		return err
	}

	dishDelta := 0
	if newDish {
		dishDelta = 1
	}
	return r.db.WithContext(ctx).
		Model(&analytics.RestaurantSummary{}).
		Where("restaurant_id = ?", restaurantID).
		Updates(map[string]interface{}{
			"total_rankings": gorm.Expr("total_rankings + 1"),
			"dishes_ranked":  gorm.Expr("dishes_ranked + ?", dishDelta),
			"last_ranked_at": rankedAt,
			"updated_at":     rankedAt,
		}).Error
}

// BumpUser adds one ranking to a user summary. newDish is true when this is
// the user's first ranking of the dish.
func (r *AnalyticsRepository) BumpUser(ctx context.Context, userID uuid.UUID, newDish bool, rankedAt time.Time) error {
	var summary analytics.UserSummary
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		summary = analytics.UserSummary{
			UserID:        userID,
			TotalRankings: 1,
			LastRankedAt:  &rankedAt,
			UpdatedAt:     rankedAt,
		}
		if newDish {
			summary.DistinctDishes = 1
		}
		return r.db.WithContext(ctx).Create(&summary).Error
	}
	if err != nil {
		return err
	}

	dishDelta := 0
	if newDish {
		dishDelta = 1
	}
	return r.db.WithContext(ctx).
		Model(&analytics.UserSummary{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_rankings":  gorm.Expr("total_rankings + 1"),
			"distinct_dishes": gorm.Expr("distinct_dishes + ?", dishDelta),
			"last_ranked_at":  rankedAt,
			"updated_at":      rankedAt,
		}).Error
}

// BumpBadgesCompleted counts a freshly completed badge on the user summary.
func (r *AnalyticsRepository) BumpBadgesCompleted(ctx context.Context, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&analytics.UserSummary{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"badges_completed": gorm.Expr("badges_completed + 1"),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.db.WithContext(ctx).Create(&analytics.UserSummary{
			UserID:          userID,
			BadgesCompleted: 1,
			UpdatedAt:       time.Now().UTC(),
		}).Error
	}
	return nil
}

func (r *AnalyticsRepository) GetDishSummary(ctx context.Context, dishID uuid.UUID) (*analytics.DishSummary, error) {
	var summary analytics.DishSummary
	err := r.db.WithContext(ctx).Where("dish_id = ?", dishID).First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tastetrail_errors.ErrNotFound
		}
		return nil, err
	}
	return &summary, nil
}
