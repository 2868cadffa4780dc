package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"go.uber.org/zap"

	"tastetrail/internal/consumer"
	"tastetrail/internal/domain/analytics"
	"tastetrail/internal/domain/deadletter"
	"tastetrail/internal/domain/outbox"
	"tastetrail/internal/domain/ranking"
	"tastetrail/internal/events"
	"tastetrail/internal/repository"
	"tastetrail/internal/services"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *services.BestEffort) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
		&analytics.DishSummary{},
		&deadletter.Event{},
	))

	log := zap.NewNop()
	bestEffort := services.NewBestEffort(16, 1, time.Second, log)
	t.Cleanup(bestEffort.Close)

	router := NewRouter(log,
		NewRankingHandler(services.NewRankingService(db, log)),
		NewAnalyticsHandler(repository.NewAnalyticsRepository(db), bestEffort, log),
		NewImportHandler(services.NewImportService(db, 50, log)),
		NewOpsHandler(repository.NewOutboxRepository(db), repository.NewDeadLetterRepository(db), map[string]*consumer.Consumer{}),
	)
	return router, db, bestEffort
}

func TestSubmitRankingEndpoint(t *testing.T) {
	router, db, _ := newTestRouter(t)

	body, err := json.Marshal(map[string]interface{}{
		"user_id":       uuid.New().String(),
		"dish_id":       uuid.New().String(),
		"restaurant_id": uuid.New().String(),
		"rank":          7,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/rankings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp struct {
		SubmissionID uuid.UUID `json:"submission_id"`
		EventID      uuid.UUID `json:"event_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEqual(t, uuid.Nil, resp.SubmissionID)

	var event outbox.OutboxEvent
	require.NoError(t, db.Where("id = ?", resp.EventID).First(&event).Error)
	require.Equal(t, outbox.StatusPending, event.Status)
	require.Equal(t, w.Header().Get("X-Request-ID"), event.TraceID)
}

func TestSubmitRankingEndpointRejectsBothFields(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body, err := json.Marshal(map[string]interface{}{
		"user_id":       uuid.New().String(),
		"dish_id":       uuid.New().String(),
		"restaurant_id": uuid.New().String(),
		"rank":          7,
		"taste_status":  "LOVED",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/rankings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDishSummaryEndpoint(t *testing.T) {
	router, db, bestEffort := newTestRouter(t)

	dishID := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&analytics.DishSummary{
		DishID:        dishID,
		TotalRankings: 12,
		TotalUsers:    4,
		UpdatedAt:     now,
	}).Error)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/dishes/"+dishID.String()+"/summary", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		TotalRankings int `json:"total_rankings"`
		TotalUsers    int `json:"total_users"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 12, resp.TotalRankings)
	require.Equal(t, 4, resp.TotalUsers)

	// The view bump happens off the request path.
	bestEffort.Close()
	var summary analytics.DishSummary
	require.NoError(t, db.Where("dish_id = ?", dishID).First(&summary).Error)
	require.Equal(t, 1, summary.TotalViews)
}

func TestDishSummaryEndpointUnknownDish(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/dishes/"+uuid.New().String()+"/summary", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestOpsDepthEndpoints(t *testing.T) {
	router, db, _ := newTestRouter(t)

	require.NoError(t, db.Create(&outbox.OutboxEvent{
		ID:          uuid.New(),
		EventType:   "DISH_RANKED",
		AggregateID: uuid.New().String(),
		Payload:     []byte(`{}`),
		Source:      "tastetrail-api",
		Status:      outbox.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}).Error)
	require.NoError(t, db.Create(&deadletter.Event{
		ID:        uuid.New(),
		EventID:   uuid.New().String(),
		EventType: "DISH_RANKED",
		Payload:   []byte(`{}`),
		Reason:    "retries exhausted",
		CreatedAt: time.Now().UTC(),
	}).Error)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/outbox/depth", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var outboxResp struct {
		Pending int64 `json:"pending"`
		Failed  int64 `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outboxResp))
	require.EqualValues(t, 1, outboxResp.Pending)
	require.Zero(t, outboxResp.Failed)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/deadletters/depth", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var dlResp struct {
		Total  int64            `json:"total"`
		ByType map[string]int64 `json:"by_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dlResp))
	require.EqualValues(t, 1, dlResp.Total)
	require.EqualValues(t, 1, dlResp.ByType["DISH_RANKED"])

	// Every known event type reports a depth, zero included.
	require.Len(t, dlResp.ByType, len(events.All()))
	for _, eventType := range events.All() {
		_, ok := dlResp.ByType[string(eventType)]
		require.True(t, ok, "missing depth for %s", eventType)
	}
	require.Zero(t, dlResp.ByType["BADGE_AWARDED"])
}
