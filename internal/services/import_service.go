package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tastetrail/internal/domain/importjob"
	"tastetrail/internal/events"
	"tastetrail/internal/repository"
	tastetrail_errors "tastetrail/pkg/errors"
	"tastetrail/pkg/logger"
)

// RestaurantRecord is one row of an import feed.
type RestaurantRecord struct {
	SourceID string
	Name     string
	Address  string
	City     string
	Cuisine  string
}

// ImportService accepts bulk restaurant feeds. Records are deduplicated by
// source id against the feed and the catalog at intake, so every queued
// event advances its batch exactly once. The job, its batches, and one
// RESTAURANT_IMPORTED outbox event per record commit together; the catalog
// itself is only written by the pipeline.
type ImportService struct {
	db        *gorm.DB
	batchSize int
	log       *zap.Logger
}

func NewImportService(db *gorm.DB, batchSize int, log *zap.Logger) *ImportService {
	if batchSize <= 0 {
		batchSize = 50
	}
	if log == nil {
		log = zap.L()
	}
	return &ImportService{db: db, batchSize: batchSize, log: log}
}

func (s *ImportService) CreateJob(ctx context.Context, source string, records []RestaurantRecord, traceID string) (*importjob.ImportJob, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: source is required", tastetrail_errors.ErrInvalidInput)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: at least one record is required", tastetrail_errors.ErrInvalidInput)
	}
	for i, rec := range records {
		if rec.SourceID == "" || rec.Name == "" {
			return nil, fmt.Errorf("%w: record %d is missing source_id or name", tastetrail_errors.ErrInvalidInput, i)
		}
	}

	// A source id maps to exactly one restaurant, so a feed repeating one
	// would strand its batch: only the first event creates the restaurant
	// and advances the counter. Keep the first occurrence of each.
	seen := make(map[string]bool, len(records))
	unique := make([]RestaurantRecord, 0, len(records))
	sourceIDs := make([]string, 0, len(records))
	for _, rec := range records {
		if seen[rec.SourceID] {
			continue
		}
		seen[rec.SourceID] = true
		unique = append(unique, rec)
		sourceIDs = append(sourceIDs, rec.SourceID)
	}

	job := &importjob.ImportJob{
		Source: source,
		Status: importjob.JobPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		importRepo := repository.NewImportRepository(tx)
		outboxRepo := repository.NewOutboxRepository(tx)
		catalogRepo := repository.NewCatalogRepository(tx)

		// Records already imported by an earlier job are dropped the same
		// way: their apply path would skip batch bookkeeping.
		existing, err := catalogRepo.ExistingSourceIDs(ctx, sourceIDs)
		if err != nil {
			return err
		}
		fresh := unique[:0]
		for _, rec := range unique {
			if !existing[rec.SourceID] {
				fresh = append(fresh, rec)
			}
		}

		job.TotalRecords = len(fresh)
		if len(fresh) == 0 {
			now := time.Now().UTC()
			job.Status = importjob.JobCompleted
			job.CompletedAt = &now
			return importRepo.CreateJob(ctx, job)
		}
		if err := importRepo.CreateJob(ctx, job); err != nil {
			return err
		}

		for offset := 0; offset < len(fresh); offset += s.batchSize {
			end := offset + s.batchSize
			if end > len(fresh) {
				end = len(fresh)
			}
			chunk := fresh[offset:end]

			batch := &importjob.ImportBatch{
				JobID:       job.ID,
				BatchNumber: offset/s.batchSize + 1,
				ItemCount:   len(chunk),
				Status:      importjob.JobPending,
			}
			if err := importRepo.CreateBatch(ctx, batch); err != nil {
				return err
			}

			for _, rec := range chunk {
				event, err := newOutboxEvent(events.TypeRestaurantImported, rec.SourceID, events.RestaurantImportedPayload{
					JobID:    job.ID,
					BatchID:  batch.ID,
					SourceID: rec.SourceID,
					Name:     rec.Name,
					Address:  rec.Address,
					City:     rec.City,
					Cuisine:  rec.Cuisine,
				}, events.SourceImport, traceID)
				if err != nil {
					return err
				}
				if err := outboxRepo.Create(ctx, tx, event); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.With(logger.ContextFields(ctx)...).Info("import job created",
		zap.String("job_id", job.ID.String()),
		zap.String("source", source),
		zap.Int("records_received", len(records)),
		zap.Int("records_queued", job.TotalRecords))
	return job, nil
}

func (s *ImportService) GetJob(ctx context.Context, id string) (*importjob.ImportJob, error) {
	jobID, err := parseUUID(id)
	if err != nil {
		return nil, err
	}
	return repository.NewImportRepository(s.db).GetJob(ctx, jobID)
}
