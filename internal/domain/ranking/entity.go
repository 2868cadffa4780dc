package ranking

import (
	"time"

	"github.com/google/uuid"
)

// TasteStatus is the qualitative alternative to a numeric rank.
type TasteStatus string

const (
	TasteStatusLoved    TasteStatus = "LOVED"
	TasteStatusLiked    TasteStatus = "LIKED"
	TasteStatusDisliked TasteStatus = "DISLIKED"
)

// ChangeType distinguishes first-time rankings from re-rankings in history.
type ChangeType string

const (
	ChangeTypeRanked  ChangeType = "DISH_RANKED"
	ChangeTypeUpdated ChangeType = "DISH_RANKING_UPDATED"
)

// Submission is the domain write recorded synchronously when a user ranks
// a dish. The DISH_RANKED outbox event is appended in the same transaction.
type Submission struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index"`
	DishID       uuid.UUID `gorm:"type:uuid;not null"`
	RestaurantID uuid.UUID `gorm:"type:uuid;not null"`
	Rank         *int
	TasteStatus  *TasteStatus `gorm:"type:varchar(20)"`
	EventID      uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex"`
	CreatedAt    time.Time    `gorm:"not null"`
}

// UserRanking is the current ranking of a dish at a restaurant by a user.
// Exactly one of Rank or TasteStatus is set, never both.
type UserRanking struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_user_dish_restaurant"`
	DishID       uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_user_dish_restaurant"`
	RestaurantID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_user_dish_restaurant"`
	Rank         *int
	TasteStatus  *TasteStatus `gorm:"type:varchar(20)"`
	CreatedAt    time.Time    `gorm:"not null"`
	UpdatedAt    time.Time    `gorm:"not null"`
}

// HistoryEntry is the append-only log of every ranking mutation. The pipeline
// never updates or deletes rows; EventID doubles as the replay guard.
type HistoryEntry struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index"`
	DishID       uuid.UUID `gorm:"type:uuid;not null"`
	RestaurantID uuid.UUID `gorm:"type:uuid;not null"`
	Rank         *int
	TasteStatus  *TasteStatus `gorm:"type:varchar(20)"`
	ChangeType   ChangeType   `gorm:"type:varchar(30);not null"`
	CreatedAt    time.Time    `gorm:"not null"`
}

// UserDishStats aggregates a user's rankings of one dish across restaurants.
// Counters are monotonically non-decreasing.
type UserDishStats struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_dish"`
	DishID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_dish"`
	TotalRankings    int       `gorm:"not null;default:0"`
	TotalRestaurants int       `gorm:"not null;default:0"`
	FirstRankedAt    time.Time `gorm:"not null"`
	LastRankedAt     time.Time `gorm:"not null"`
}

func (Submission) TableName() string {
	return "ranking_submissions"
}

func (UserRanking) TableName() string {
	return "user_rankings"
}

func (HistoryEntry) TableName() string {
	return "ranking_history"
}

func (UserDishStats) TableName() string {
	return "user_dish_stats"
}
