package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tastetrail/internal/domain/importjob"
	tastetrail_errors "tastetrail/pkg/errors"
)

// ImportRepository manages import jobs and their batches.
type ImportRepository struct {
	db *gorm.DB
}

func NewImportRepository(db *gorm.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

func (r *ImportRepository) GetJob(ctx context.Context, id uuid.UUID) (*importjob.ImportJob, error) {
	var job importjob.ImportJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tastetrail_errors.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *ImportRepository) CreateJob(ctx context.Context, job *importjob.ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *ImportRepository) GetBatch(ctx context.Context, id uuid.UUID) (*importjob.ImportBatch, error) {
	var batch importjob.ImportBatch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tastetrail_errors.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (r *ImportRepository) CreateBatch(ctx context.Context, batch *importjob.ImportBatch) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	return r.db.WithContext(ctx).Create(batch).Error
}

// AdvanceBatch counts one processed item on a batch and marks the batch
// completed when the count reaches its item total.
func (r *ImportRepository) AdvanceBatch(ctx context.Context, batchID uuid.UUID) (*importjob.ImportBatch, error) {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(&importjob.ImportBatch{}).
		Where("id = ?", batchID).
		Updates(map[string]interface{}{
			"processed_count": gorm.Expr("processed_count + 1"),
			"status":          importjob.JobInProgress,
			"updated_at":      now,
		}).Error
	if err != nil {
		return nil, err
	}

	batch, err := r.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.ProcessedCount >= batch.ItemCount && batch.Status != importjob.JobCompleted {
		batch.Status = importjob.JobCompleted
		err = r.db.WithContext(ctx).
			Model(&importjob.ImportBatch{}).
			Where("id = ?", batchID).
			Updates(map[string]interface{}{
				"status":     importjob.JobCompleted,
				"updated_at": now,
			}).Error
		if err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// CompleteJobIfDone marks the job completed when all its batches are.
func (r *ImportRepository) CompleteJobIfDone(ctx context.Context, jobID uuid.UUID) error {
	var remaining int64
	err := r.db.WithContext(ctx).
		Model(&importjob.ImportBatch{}).
		Where("job_id = ? AND status <> ?", jobID, importjob.JobCompleted).
		Count(&remaining).Error
	if err != nil {
		return err
	}
	if remaining > 0 {
		return r.db.WithContext(ctx).
			Model(&importjob.ImportJob{}).
			Where("id = ? AND status = ?", jobID, importjob.JobPending).
			Updates(map[string]interface{}{
				"status":     importjob.JobInProgress,
				"updated_at": time.Now().UTC(),
			}).Error
	}

	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&importjob.ImportJob{}).
		Where("id = ? AND status <> ?", jobID, importjob.JobCompleted).
		Updates(map[string]interface{}{
			"status":       importjob.JobCompleted,
			"completed_at": now,
			"updated_at":   now,
		}).Error
}
