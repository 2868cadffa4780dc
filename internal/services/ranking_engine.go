package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tastetrail/internal/domain/badge"
	"tastetrail/internal/domain/ranking"
	"tastetrail/internal/events"
	"tastetrail/internal/repository"
	tastetrail_errors "tastetrail/pkg/errors"
	"tastetrail/pkg/logger"
)

// RankingEngine applies DISH_RANKED notifications: it upserts the current
// ranking, appends history, maintains per-dish stats, evaluates badges, and
// bumps the analytics summaries. Everything runs in one transaction keyed
// by the event id, so a redelivered event is a clean no-op.
type RankingEngine struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRankingEngine(db *gorm.DB, log *zap.Logger) *RankingEngine {
	if log == nil {
		log = zap.L()
	}
	return &RankingEngine{db: db, log: log}
}

func (e *RankingEngine) Apply(ctx context.Context, env events.Envelope) error {
	var payload events.DishRankedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: decode DISH_RANKED payload: %v", tastetrail_errors.ErrInvalidInput, err))
	}
	if err := validateDishRanked(payload); err != nil {
		return err
	}
	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: event id %q is not a uuid", tastetrail_errors.ErrInvalidInput, env.EventID))
	}

	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rankings := repository.NewRankingRepository(tx)
		badges := repository.NewBadgeRepository(tx)
		analytics := repository.NewAnalyticsRepository(tx)
		outboxRepo := repository.NewOutboxRepository(tx)

		existing, err := rankings.GetHistoryByEvent(ctx, eventID)
		if err == nil {
			return e.verifyReplay(env.EventID, existing, payload)
		}
		if err != tastetrail_errors.ErrNotFound {
			return err
		}

		isNewTriple, err := e.upsertRanking(ctx, rankings, payload)
		if err != nil {
			return err
		}

		changeType := ranking.ChangeTypeUpdated
		if isNewTriple {
			changeType = ranking.ChangeTypeRanked
		}
		err = rankings.AppendHistory(ctx, &ranking.HistoryEntry{
			EventID:      eventID,
			UserID:       payload.UserID,
			DishID:       payload.DishID,
			RestaurantID: payload.RestaurantID,
			Rank:         payload.Rank,
			TasteStatus:  payload.TasteStatus,
			ChangeType:   changeType,
		})
		if err != nil {
			if err == tastetrail_errors.ErrAlreadyExists {
				// Concurrent delivery of the same event won the race.
				existing, getErr := rankings.GetHistoryByEvent(ctx, eventID)
				if getErr != nil {
					return getErr
				}
				return e.verifyReplay(env.EventID, existing, payload)
			}
			return err
		}

		newDishForUser, err := e.bumpStats(ctx, rankings, payload, isNewTriple)
		if err != nil {
			return err
		}

		if err := e.evaluateBadges(ctx, rankings, badges, outboxRepo, tx, env, payload); err != nil {
			return err
		}

		return e.bumpSummaries(ctx, rankings, analytics, payload, isNewTriple, newDishForUser)
	})
}

// verifyReplay decides what a redelivered event id means. The same payload
// is a benign redelivery; a different payload reusing the id is corrupt and
// must not burn retry attempts.
func (e *RankingEngine) verifyReplay(eventID string, entry *ranking.HistoryEntry, p events.DishRankedPayload) error {
	if replayMatches(entry, p) {
		e.log.Debug("event already applied, skipping",
			zap.String("event_id", eventID))
		return nil
	}
	return tastetrail_errors.NonRetriable(fmt.Errorf("%w: event %s replayed with a different payload", tastetrail_errors.ErrDataIntegrity, eventID))
}

func replayMatches(entry *ranking.HistoryEntry, p events.DishRankedPayload) bool {
	if entry.UserID != p.UserID || entry.DishID != p.DishID || entry.RestaurantID != p.RestaurantID {
		return false
	}
	if (entry.Rank == nil) != (p.Rank == nil) || (entry.TasteStatus == nil) != (p.TasteStatus == nil) {
		return false
	}
	if entry.Rank != nil && *entry.Rank != *p.Rank {
		return false
	}
	if entry.TasteStatus != nil && *entry.TasteStatus != *p.TasteStatus {
		return false
	}
	return true
}

func validateDishRanked(p events.DishRankedPayload) error {
	if p.UserID == uuid.Nil || p.DishID == uuid.Nil || p.RestaurantID == uuid.Nil {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: user_id, dish_id and restaurant_id are required", tastetrail_errors.ErrInvalidInput))
	}
	if (p.Rank == nil) == (p.TasteStatus == nil) {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: exactly one of rank or taste_status must be set", tastetrail_errors.ErrInvalidInput))
	}
	if p.Rank != nil && (*p.Rank < 1 || *p.Rank > 10) {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: rank %d out of range 1..10", tastetrail_errors.ErrInvalidInput, *p.Rank))
	}
	if p.TasteStatus != nil {
		switch *p.TasteStatus {
		case ranking.TasteStatusLoved, ranking.TasteStatusLiked, ranking.TasteStatusDisliked:
		default:
			return tastetrail_errors.NonRetriable(fmt.Errorf("%w: unknown taste status %q", tastetrail_errors.ErrInvalidInput, *p.TasteStatus))
		}
	}
	return nil
}

// upsertRanking writes the current ranking for the triple and reports
// whether the triple was new.
func (e *RankingEngine) upsertRanking(ctx context.Context, rankings *repository.RankingRepository, p events.DishRankedPayload) (bool, error) {
	now := time.Now().UTC()
	existing, err := rankings.GetByTriple(ctx, p.UserID, p.DishID, p.RestaurantID)
	if err == tastetrail_errors.ErrNotFound {
		createErr := rankings.CreateRanking(ctx, &ranking.UserRanking{
			UserID:       p.UserID,
			DishID:       p.DishID,
			RestaurantID: p.RestaurantID,
			Rank:         p.Rank,
			TasteStatus:  p.TasteStatus,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if createErr == tastetrail_errors.ErrAlreadyExists {
			// Lost a race against a concurrent event for the same triple;
			// fall through to the update path.
			existing, err = rankings.GetByTriple(ctx, p.UserID, p.DishID, p.RestaurantID)
			if err != nil {
				return false, err
			}
		} else {
			return createErr == nil, createErr
		}
	} else if err != nil {
		return false, err
	}

	existing.Rank = p.Rank
	existing.TasteStatus = p.TasteStatus
	existing.UpdatedAt = now
	return false, rankings.UpdateRanking(ctx, existing)
}

// bumpStats maintains the per-user per-dish stats row and reports whether
// this was the user's first ranking of the dish.
func (e *RankingEngine) bumpStats(ctx context.Context, rankings *repository.RankingRepository, p events.DishRankedPayload, isNewTriple bool) (bool, error) {
	rankedAt := p.RankedAt
	if rankedAt.IsZero() {
		rankedAt = time.Now().UTC()
	}

	stats, err := rankings.GetStats(ctx, p.UserID, p.DishID)
	if err == tastetrail_errors.ErrNotFound {
		return true, rankings.CreateStats(ctx, &ranking.UserDishStats{
			UserID:           p.UserID,
			DishID:           p.DishID,
			TotalRankings:    1,
			TotalRestaurants: 1,
			FirstRankedAt:    rankedAt,
			LastRankedAt:     rankedAt,
		})
	}
	if err != nil {
		return false, err
	}

	restaurantDelta := 0
	if isNewTriple {
		restaurantDelta = 1
	}
	return false, rankings.BumpStats(ctx, stats.ID, 1, restaurantDelta, rankedAt)
}

func (e *RankingEngine) evaluateBadges(ctx context.Context, rankings *repository.RankingRepository, badges *repository.BadgeRepository, outboxRepo *repository.OutboxRepository, tx *gorm.DB, env events.Envelope, p events.DishRankedPayload) error {
	totalRankings, err := rankings.CountRankings(ctx, p.UserID)
	if err != nil {
		return err
	}
	distinctDishes, err := rankings.CountDistinctDishes(ctx, p.UserID)
	if err != nil {
		return err
	}
	stats, err := rankings.GetStats(ctx, p.UserID, p.DishID)
	if err != nil {
		return err
	}

	progress := EvaluateBadges(ActivitySnapshot{
		TotalRankings:      int(totalRankings),
		DistinctDishes:     int(distinctDishes),
		RestaurantsForDish: stats.TotalRestaurants,
	})

	for _, bp := range progress {
		if err := e.applyBadgeProgress(ctx, badges, outboxRepo, tx, env, p.UserID, bp); err != nil {
			return err
		}
	}
	return nil
}

// applyBadgeProgress persists one badge's progress. Progress never moves
// backwards and completion flips exactly once; the award event is written
// to the outbox in the same transaction as the flip.
func (e *RankingEngine) applyBadgeProgress(ctx context.Context, badges *repository.BadgeRepository, outboxRepo *repository.OutboxRepository, tx *gorm.DB, env events.Envelope, userID uuid.UUID, bp BadgeProgress) error {
	now := time.Now().UTC()

	ub, err := badges.GetUserBadge(ctx, userID, bp.Type)
	if err == tastetrail_errors.ErrNotFound {
		ub = &badge.UserBadge{
			UserID:          userID,
			BadgeType:       bp.Type,
			CurrentProgress: bp.Current,
			TargetProgress:  bp.Target,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if bp.Completed() {
			ub.IsCompleted = true
			ub.CompletedAt = &now
		}
		if err := badges.CreateUserBadge(ctx, ub); err != nil {
			return err
		}
		return e.emitBadgeEvent(ctx, outboxRepo, tx, env, userID, bp, ub.IsCompleted)
	}
	if err != nil {
		return err
	}

	if bp.Current <= ub.CurrentProgress {
		return nil
	}

	if bp.Completed() && !ub.IsCompleted {
		won, err := badges.CompleteBadge(ctx, ub.ID, bp.Current, now)
		if err != nil {
			return err
		}
		if !won {
			// A concurrent transaction completed the badge after our read;
			// the award event is theirs to emit.
			return nil
		}
		return e.emitBadgeEvent(ctx, outboxRepo, tx, env, userID, bp, true)
	}

	advanced, err := badges.AdvanceProgress(ctx, ub.ID, bp.Current, now)
	if err != nil {
		return err
	}
	if !advanced {
		return nil
	}
	return e.emitBadgeEvent(ctx, outboxRepo, tx, env, userID, bp, false)
}

func (e *RankingEngine) emitBadgeEvent(ctx context.Context, outboxRepo *repository.OutboxRepository, tx *gorm.DB, env events.Envelope, userID uuid.UUID, bp BadgeProgress, awarded bool) error {
	eventType := events.TypeBadgeProgressUpdated
	if awarded {
		eventType = events.TypeBadgeAwarded
	}
	event, err := newOutboxEvent(eventType, userID.String(), events.BadgeProgressPayload{
		UserID:          userID,
		BadgeType:       bp.Type,
		CurrentProgress: bp.Current,
		TargetProgress:  bp.Target,
	}, events.SourceEngine, env.TraceID)
	if err != nil {
		return err
	}
	if err := outboxRepo.Create(ctx, tx, event); err != nil {
		return err
	}
	if awarded {
		e.log.With(logger.ContextFields(ctx)...).Info("badge awarded",
			zap.String("user_id", userID.String()),
			zap.String("badge", string(bp.Type)))
	}
	return nil
}

func (e *RankingEngine) bumpSummaries(ctx context.Context, rankings *repository.RankingRepository, analytics *repository.AnalyticsRepository, p events.DishRankedPayload, isNewTriple, newDishForUser bool) error {
	rankedAt := p.RankedAt
	if rankedAt.IsZero() {
		rankedAt = time.Now().UTC()
	}

	if err := analytics.BumpDish(ctx, p.DishID, newDishForUser, rankedAt); err != nil {
		return err
	}

	newDishAtRestaurant := false
	if isNewTriple {
		count, err := rankings.CountDishRankingsAtRestaurant(ctx, p.DishID, p.RestaurantID)
		if err != nil {
			return err
		}
		newDishAtRestaurant = count == 1
	}
	if err := analytics.BumpRestaurant(ctx, p.RestaurantID, newDishAtRestaurant, rankedAt); err != nil {
		return err
	}

	return analytics.BumpUser(ctx, p.UserID, newDishForUser, rankedAt)
}
