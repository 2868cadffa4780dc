package badge

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies a badge in the catalog.
type Type string

const (
	TypeFirstTimer      Type = "FIRST_TIMER"
	TypeDishExplorer    Type = "DISH_EXPLORER"
	TypeDishConnoisseur Type = "DISH_CONNOISSEUR"
	TypeDishExpert      Type = "DISH_EXPERT"
	TypeDishMaster      Type = "DISH_MASTER"
)

// EvaluationOrder is the fixed order badge thresholds are checked in.
var EvaluationOrder = []Type{
	TypeFirstTimer,
	TypeDishExplorer,
	TypeDishConnoisseur,
	TypeDishExpert,
	TypeDishMaster,
}

// Target returns the progress target for a badge type, or 0 for unknown types.
func Target(t Type) int {
	switch t {
	case TypeFirstTimer:
		return 1
	case TypeDishExplorer:
		return 5
	case TypeDishConnoisseur:
		return 10
	case TypeDishExpert:
		return 3
	case TypeDishMaster:
		return 5
	default:
		return 0
	}
}

// UserBadge tracks a user's progress toward one badge type. CurrentProgress
// never decreases and IsCompleted flips false->true exactly once.
type UserBadge struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_badge"`
	BadgeType       Type      `gorm:"type:varchar(30);not null;uniqueIndex:idx_user_badge"`
	CurrentProgress int       `gorm:"not null;default:0"`
	TargetProgress  int       `gorm:"not null"`
	IsCompleted     bool      `gorm:"not null;default:false"`
	CompletedAt     *time.Time
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// AwardNotification records a delivered badge award, keyed by the
// BADGE_AWARDED event id so re-delivery is a no-op.
type AwardNotification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	BadgeType Type      `gorm:"type:varchar(30);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}

func (AwardNotification) TableName() string {
	return "badge_award_notifications"
}
