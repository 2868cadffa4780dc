package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tastetrail/internal/domain/badge"
	"tastetrail/internal/events"
	"tastetrail/internal/repository"
	tastetrail_errors "tastetrail/pkg/errors"
)

// BadgeAwardApplier applies BADGE_AWARDED notifications: it records the
// award notification and counts the badge on the user's summary. The
// notification row is keyed by the event id, making redelivery a no-op.
type BadgeAwardApplier struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewBadgeAwardApplier(db *gorm.DB, log *zap.Logger) *BadgeAwardApplier {
	if log == nil {
		log = zap.L()
	}
	return &BadgeAwardApplier{db: db, log: log}
}

func (a *BadgeAwardApplier) Apply(ctx context.Context, env events.Envelope) error {
	var payload events.BadgeProgressPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: decode BADGE_AWARDED payload: %v", tastetrail_errors.ErrInvalidInput, err))
	}
	if payload.UserID == uuid.Nil || payload.BadgeType == "" {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: user_id and badge_type are required", tastetrail_errors.ErrInvalidInput))
	}
	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: event id %q is not a uuid", tastetrail_errors.ErrInvalidInput, env.EventID))
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		badges := repository.NewBadgeRepository(tx)
		analytics := repository.NewAnalyticsRepository(tx)

		exists, err := badges.NotificationExistsForEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if exists {
			a.log.Debug("award already recorded, skipping",
				zap.String("event_id", env.EventID))
			return nil
		}

		err = badges.CreateNotification(ctx, &badge.AwardNotification{
			EventID:   eventID,
			UserID:    payload.UserID,
			BadgeType: payload.BadgeType,
		})
		if err == tastetrail_errors.ErrAlreadyExists {
			return nil
		}
		if err != nil {
			return err
		}

		return analytics.BumpBadgesCompleted(ctx, payload.UserID)
	})
}
