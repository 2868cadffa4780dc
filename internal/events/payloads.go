package events

import (
	"time"

	"github.com/google/uuid"

	"tastetrail/internal/domain/badge"
	"tastetrail/internal/domain/ranking"
)

// DishRankedPayload is the body of a DISH_RANKED notification.
type DishRankedPayload struct {
	UserID       uuid.UUID            `json:"user_id"`
	DishID       uuid.UUID            `json:"dish_id"`
	RestaurantID uuid.UUID            `json:"restaurant_id"`
	Rank         *int                 `json:"rank,omitempty"`
	TasteStatus  *ranking.TasteStatus `json:"taste_status,omitempty"`
	RankedAt     time.Time            `json:"ranked_at"`
}

// BadgeProgressPayload is the body of BADGE_PROGRESS_UPDATED and
// BADGE_AWARDED notifications.
type BadgeProgressPayload struct {
	UserID          uuid.UUID  `json:"user_id"`
	BadgeType       badge.Type `json:"badge_type"`
	CurrentProgress int        `json:"current_progress"`
	TargetProgress  int        `json:"target_progress"`
}

// RestaurantImportedPayload is the body of a RESTAURANT_IMPORTED notification.
type RestaurantImportedPayload struct {
	JobID    uuid.UUID `json:"job_id"`
	BatchID  uuid.UUID `json:"batch_id"`
	SourceID string    `json:"source_id"`
	Name     string    `json:"name"`
	Address  string    `json:"address,omitempty"`
	City     string    `json:"city,omitempty"`
	Cuisine  string    `json:"cuisine,omitempty"`
}
