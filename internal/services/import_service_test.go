package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tastetrail/internal/domain/catalog"
	"tastetrail/internal/domain/importjob"
	"tastetrail/internal/events"
	tastetrail_errors "tastetrail/pkg/errors"
)

func TestCreateJobBatchesRecordsAndWritesOutbox(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportService(db, 2, nil)

	records := make([]RestaurantRecord, 5)
	for i := range records {
		records[i] = RestaurantRecord{
			SourceID: fmt.Sprintf("osm-%d", i),
			Name:     fmt.Sprintf("Restaurant %d", i),
		}
	}

	job, err := svc.CreateJob(context.Background(), "osm", records, "trace-import")
	require.NoError(t, err)
	require.Equal(t, 5, job.TotalRecords)
	require.Equal(t, importjob.JobPending, job.Status)

	var batches []importjob.ImportBatch
	require.NoError(t, db.Where("job_id = ?", job.ID).Order("batch_number ASC").Find(&batches).Error)
	require.Len(t, batches, 3)
	require.Equal(t, 2, batches[0].ItemCount)
	require.Equal(t, 2, batches[1].ItemCount)
	require.Equal(t, 1, batches[2].ItemCount)

	rows := outboxEventsOfType(t, db, events.TypeRestaurantImported)
	require.Len(t, rows, 5)
	require.Equal(t, events.SourceImport, rows[0].Source)
	require.Equal(t, "trace-import", rows[0].TraceID)
}

func TestCreateJobDedupesFeedAndSkipsKnownRestaurants(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportService(db, 2, nil)

	require.NoError(t, db.Create(&catalog.Restaurant{
		ID:       uuid.New(),
		SourceID: "osm-known",
		Name:     "Already Imported",
	}).Error)

	// osm-1 appears twice and osm-known is already in the catalog; neither
	// event would ever advance its batch, so only two records are queued.
	records := []RestaurantRecord{
		{SourceID: "osm-1", Name: "First"},
		{SourceID: "osm-known", Name: "Already Imported"},
		{SourceID: "osm-1", Name: "First Again"},
		{SourceID: "osm-2", Name: "Second"},
	}

	job, err := svc.CreateJob(context.Background(), "osm", records, "trace-dedupe")
	require.NoError(t, err)
	require.Equal(t, 2, job.TotalRecords)
	require.Equal(t, importjob.JobPending, job.Status)

	var batches []importjob.ImportBatch
	require.NoError(t, db.Where("job_id = ?", job.ID).Find(&batches).Error)
	require.Len(t, batches, 1)
	require.Equal(t, 2, batches[0].ItemCount)

	rows := outboxEventsOfType(t, db, events.TypeRestaurantImported)
	require.Len(t, rows, 2)
	sourceIDs := make(map[string]int, len(rows))
	for _, row := range rows {
		var p events.RestaurantImportedPayload
		require.NoError(t, json.Unmarshal(row.Payload, &p))
		sourceIDs[p.SourceID]++
	}
	require.Equal(t, 1, sourceIDs["osm-1"])
	require.Equal(t, 1, sourceIDs["osm-2"])
}

func TestCreateJobWithOnlyKnownRecordsCompletesImmediately(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportService(db, 2, nil)

	require.NoError(t, db.Create(&catalog.Restaurant{
		ID:       uuid.New(),
		SourceID: "osm-known",
		Name:     "Already Imported",
	}).Error)

	job, err := svc.CreateJob(context.Background(), "osm",
		[]RestaurantRecord{{SourceID: "osm-known", Name: "Already Imported"}}, "")
	require.NoError(t, err)
	require.Equal(t, importjob.JobCompleted, job.Status)
	require.Zero(t, job.TotalRecords)
	require.NotNil(t, job.CompletedAt)

	var batchCount int64
	require.NoError(t, db.Model(&importjob.ImportBatch{}).Where("job_id = ?", job.ID).Count(&batchCount).Error)
	require.Zero(t, batchCount)
	require.Empty(t, outboxEventsOfType(t, db, events.TypeRestaurantImported))
}

func TestCreateJobValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportService(db, 2, nil)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, "", []RestaurantRecord{{SourceID: "a", Name: "b"}}, "")
	require.ErrorIs(t, err, tastetrail_errors.ErrInvalidInput)

	_, err = svc.CreateJob(ctx, "osm", nil, "")
	require.ErrorIs(t, err, tastetrail_errors.ErrInvalidInput)

	_, err = svc.CreateJob(ctx, "osm", []RestaurantRecord{{Name: "missing source id"}}, "")
	require.ErrorIs(t, err, tastetrail_errors.ErrInvalidInput)

	var jobCount int64
	require.NoError(t, db.Model(&importjob.ImportJob{}).Count(&jobCount).Error)
	require.Zero(t, jobCount)
}
