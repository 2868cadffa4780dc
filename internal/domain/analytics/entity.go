package analytics

import (
	"time"

	"github.com/google/uuid"
)

// Summaries are incremental counters, eventually consistent with
// ranking_history: each one is derivable by a full replay of the log.

// DishSummary aggregates ranking activity for one dish.
type DishSummary struct {
	DishID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	TotalRankings int       `gorm:"not null;default:0"`
	TotalUsers    int       `gorm:"not null;default:0"`
	TotalViews    int       `gorm:"not null;default:0"`
	LastRankedAt  *time.Time
	UpdatedAt     time.Time `gorm:"not null"`
}

// RestaurantSummary aggregates ranking activity for one restaurant.
type RestaurantSummary struct {
	RestaurantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	TotalRankings int       `gorm:"not null;default:0"`
	DishesRanked  int       `gorm:"not null;default:0"`
	LastRankedAt  *time.Time
	UpdatedAt     time.Time `gorm:"not null"`
}

// UserSummary aggregates one user's activity across the platform.
type UserSummary struct {
	UserID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TotalRankings   int       `gorm:"not null;default:0"`
	DistinctDishes  int       `gorm:"not null;default:0"`
	BadgesCompleted int       `gorm:"not null;default:0"`
	LastRankedAt    *time.Time
	UpdatedAt       time.Time `gorm:"not null"`
}

func (DishSummary) TableName() string {
	return "dish_analytics_summaries"
}

func (RestaurantSummary) TableName() string {
	return "restaurant_analytics_summaries"
}

func (UserSummary) TableName() string {
	return "user_analytics_summaries"
}
