package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tastetrail/internal/domain/analytics"
	"tastetrail/internal/domain/badge"
	"tastetrail/internal/domain/catalog"
	"tastetrail/internal/domain/deadletter"
	"tastetrail/internal/domain/importjob"
	"tastetrail/internal/domain/outbox"
	"tastetrail/internal/domain/ranking"
	"tastetrail/internal/events"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&outbox.OutboxEvent{},
		&ranking.Submission{},
		&ranking.UserRanking{},
		&ranking.HistoryEntry{},
		&ranking.UserDishStats{},
		&badge.UserBadge{},
		&badge.AwardNotification{},
		&analytics.DishSummary{},
		&analytics.RestaurantSummary{},
		&analytics.UserSummary{},
		&catalog.Restaurant{},
		&catalog.Dish{},
		&importjob.ImportJob{},
		&importjob.ImportBatch{},
		&deadletter.Event{},
	))
	return db
}

func makeEnvelope(t *testing.T, eventType events.Type, payload interface{}) events.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Envelope{
		EventID:   uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Source:    events.SourceAPI,
		Version:   events.Version,
		TraceID:   "trace-test",
		Status:    "SUCCESS",
		Payload:   data,
	}
}

func intPtr(v int) *int {
	return &v
}

func tastePtr(v ranking.TasteStatus) *ranking.TasteStatus {
	return &v
}

func outboxEventsOfType(t *testing.T, db *gorm.DB, eventType events.Type) []outbox.OutboxEvent {
	t.Helper()
	var rows []outbox.OutboxEvent
	require.NoError(t, db.Where("event_type = ?", string(eventType)).Order("created_at ASC").Find(&rows).Error)
	return rows
}
