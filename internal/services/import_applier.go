package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tastetrail/internal/domain/catalog"
	"tastetrail/internal/events"
	"tastetrail/internal/repository"
	tastetrail_errors "tastetrail/pkg/errors"
)

// ImportApplier applies RESTAURANT_IMPORTED notifications. The restaurant's
// source id is the idempotency key: an event for a source id that already
// exists is treated as a redelivery and skipped entirely, batch bookkeeping
// included. Intake deduplicates feeds against themselves and the catalog,
// so a known source id here can only mean redelivery.
type ImportApplier struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewImportApplier(db *gorm.DB, log *zap.Logger) *ImportApplier {
	if log == nil {
		log = zap.L()
	}
	return &ImportApplier{db: db, log: log}
}

func (a *ImportApplier) Apply(ctx context.Context, env events.Envelope) error {
	var payload events.RestaurantImportedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: decode RESTAURANT_IMPORTED payload: %v", tastetrail_errors.ErrInvalidInput, err))
	}
	if payload.SourceID == "" || payload.Name == "" {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: source_id and name are required", tastetrail_errors.ErrInvalidInput))
	}
	if payload.JobID == uuid.Nil || payload.BatchID == uuid.Nil {
		return tastetrail_errors.NonRetriable(fmt.Errorf("%w: job_id and batch_id are required", tastetrail_errors.ErrInvalidInput))
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		catalogRepo := repository.NewCatalogRepository(tx)
		importRepo := repository.NewImportRepository(tx)

		_, err := catalogRepo.GetRestaurantBySourceID(ctx, payload.SourceID)
		if err == nil {
			a.log.Debug("restaurant already imported, skipping",
				zap.String("source_id", payload.SourceID),
				zap.String("event_id", env.EventID))
			return nil
		}
		if err != tastetrail_errors.ErrNotFound {
			return err
		}

		err = catalogRepo.CreateRestaurant(ctx, &catalog.Restaurant{
			SourceID: payload.SourceID,
			Name:     payload.Name,
			Address:  payload.Address,
			City:     payload.City,
			Cuisine:  payload.Cuisine,
		})
		if err == tastetrail_errors.ErrAlreadyExists {
			// Concurrent delivery created it first.
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := importRepo.AdvanceBatch(ctx, payload.BatchID); err != nil {
			return err
		}
		return importRepo.CompleteJobIfDone(ctx, payload.JobID)
	})
}
