package importjob

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle of a restaurant import job.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// ImportJob represents one bulk restaurant import. Created by the intake
// layer; only the pipeline advances its status.
type ImportJob struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Source       string    `gorm:"type:varchar(64);not null"`
	Status       JobStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`
	TotalRecords int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
	CompletedAt  *time.Time
}

// ImportBatch is one slice of an import job.
type ImportBatch struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	JobID          uuid.UUID `gorm:"type:uuid;not null;index"`
	BatchNumber    int       `gorm:"not null"`
	ItemCount      int       `gorm:"not null"`
	ProcessedCount int       `gorm:"not null;default:0"`
	Status         JobStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (ImportJob) TableName() string {
	return "import_jobs"
}

func (ImportBatch) TableName() string {
	return "import_batches"
}
