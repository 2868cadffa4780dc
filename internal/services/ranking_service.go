package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tastetrail/internal/domain/ranking"
	"tastetrail/internal/events"
	"tastetrail/internal/repository"
	tastetrail_errors "tastetrail/pkg/errors"
	"tastetrail/pkg/logger"
)

// SubmitRankingInput is the synchronous write accepted from the API.
type SubmitRankingInput struct {
	UserID       uuid.UUID
	DishID       uuid.UUID
	RestaurantID uuid.UUID
	Rank         *int
	TasteStatus  *ranking.TasteStatus
	TraceID      string
}

// RankingService records ranking submissions. The submission row and its
// DISH_RANKED outbox event commit in the same transaction; the read side
// catches up asynchronously through the pipeline.
type RankingService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewRankingService(db *gorm.DB, log *zap.Logger) *RankingService {
	if log == nil {
		log = zap.L()
	}
	return &RankingService{db: db, log: log}
}

func (s *RankingService) SubmitRanking(ctx context.Context, input SubmitRankingInput) (*ranking.Submission, error) {
	if err := validateSubmission(input); err != nil {
		return nil, err
	}

	rankedAt := time.Now().UTC()
	sub := &ranking.Submission{
		ID:           uuid.New(),
		UserID:       input.UserID,
		DishID:       input.DishID,
		RestaurantID: input.RestaurantID,
		Rank:         input.Rank,
		TasteStatus:  input.TasteStatus,
		CreatedAt:    rankedAt,
	}

	event, err := newOutboxEvent(events.TypeDishRanked, input.UserID.String(), events.DishRankedPayload{
		UserID:       input.UserID,
		DishID:       input.DishID,
		RestaurantID: input.RestaurantID,
		Rank:         input.Rank,
		TasteStatus:  input.TasteStatus,
		RankedAt:     rankedAt,
	}, events.SourceAPI, input.TraceID)
	if err != nil {
		return nil, err
	}
	sub.EventID = event.ID

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rankings := repository.NewRankingRepository(tx)
		outboxRepo := repository.NewOutboxRepository(tx)

		if err := rankings.CreateSubmission(ctx, tx, sub); err != nil {
			return err
		}
		return outboxRepo.Create(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	s.log.With(logger.ContextFields(ctx)...).Info("ranking submitted",
		zap.String("submission_id", sub.ID.String()),
		zap.String("event_id", event.ID.String()),
		zap.String("user_id", input.UserID.String()))
	return sub, nil
}

func validateSubmission(input SubmitRankingInput) error {
	if input.UserID == uuid.Nil || input.DishID == uuid.Nil || input.RestaurantID == uuid.Nil {
		return fmt.Errorf("%w: user_id, dish_id and restaurant_id are required", tastetrail_errors.ErrInvalidInput)
	}
	if (input.Rank == nil) == (input.TasteStatus == nil) {
		return fmt.Errorf("%w: exactly one of rank or taste_status must be set", tastetrail_errors.ErrInvalidInput)
	}
	if input.Rank != nil && (*input.Rank < 1 || *input.Rank > 10) {
		return fmt.Errorf("%w: rank %d out of range 1..10", tastetrail_errors.ErrInvalidInput, *input.Rank)
	}
	if input.TasteStatus != nil {
		switch *input.TasteStatus {
		case ranking.TasteStatusLoved, ranking.TasteStatusLiked, ranking.TasteStatusDisliked:
		default:
			return fmt.Errorf("%w: unknown taste status %q", tastetrail_errors.ErrInvalidInput, *input.TasteStatus)
		}
	}
	return nil
}
