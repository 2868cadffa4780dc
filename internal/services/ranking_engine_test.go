package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tastetrail/internal/domain/analytics"
	"tastetrail/internal/domain/badge"
	"tastetrail/internal/domain/ranking"
	"tastetrail/internal/events"
	tastetrail_errors "tastetrail/pkg/errors"
)

func dishRankedEnvelope(t *testing.T, userID, dishID, restaurantID uuid.UUID, rank *int, taste *ranking.TasteStatus) events.Envelope {
	t.Helper()
	return makeEnvelope(t, events.TypeDishRanked, events.DishRankedPayload{
		UserID:       userID,
		DishID:       dishID,
		RestaurantID: restaurantID,
		Rank:         rank,
		TasteStatus:  taste,
		RankedAt:     time.Now().UTC(),
	})
}

func TestRankingEngineAppliesFirstRanking(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankingEngine(db, nil)

	userID, dishID, restaurantID := uuid.New(), uuid.New(), uuid.New()
	env := dishRankedEnvelope(t, userID, dishID, restaurantID, intPtr(8), nil)

	require.NoError(t, engine.Apply(context.Background(), env))

	var rk ranking.UserRanking
	require.NoError(t, db.Where("user_id = ?", userID).First(&rk).Error)
	require.NotNil(t, rk.Rank)
	require.Equal(t, 8, *rk.Rank)
	require.Nil(t, rk.TasteStatus)

	var history []ranking.HistoryEntry
	require.NoError(t, db.Where("user_id = ?", userID).Find(&history).Error)
	require.Len(t, history, 1)
	require.Equal(t, ranking.ChangeTypeRanked, history[0].ChangeType)

	var stats ranking.UserDishStats
	require.NoError(t, db.Where("user_id = ? AND dish_id = ?", userID, dishID).First(&stats).Error)
	require.Equal(t, 1, stats.TotalRankings)
	require.Equal(t, 1, stats.TotalRestaurants)

	var firstTimer badge.UserBadge
	require.NoError(t, db.Where("user_id = ? AND badge_type = ?", userID, badge.TypeFirstTimer).First(&firstTimer).Error)
	require.True(t, firstTimer.IsCompleted)
	require.NotNil(t, firstTimer.CompletedAt)

	awarded := outboxEventsOfType(t, db, events.TypeBadgeAwarded)
	require.Len(t, awarded, 1)

	var summary analytics.UserSummary
	require.NoError(t, db.Where("user_id = ?", userID).First(&summary).Error)
	require.Equal(t, 1, summary.TotalRankings)
	require.Equal(t, 1, summary.DistinctDishes)
}

func TestRankingEngineReplayIsNoOp(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankingEngine(db, nil)

	userID, dishID, restaurantID := uuid.New(), uuid.New(), uuid.New()
	env := dishRankedEnvelope(t, userID, dishID, restaurantID, intPtr(7), nil)

	require.NoError(t, engine.Apply(context.Background(), env))
	require.NoError(t, engine.Apply(context.Background(), env))
	require.NoError(t, engine.Apply(context.Background(), env))

	var historyCount int64
	require.NoError(t, db.Model(&ranking.HistoryEntry{}).Where("user_id = ?", userID).Count(&historyCount).Error)
	require.EqualValues(t, 1, historyCount)

	var stats ranking.UserDishStats
	require.NoError(t, db.Where("user_id = ? AND dish_id = ?", userID, dishID).First(&stats).Error)
	require.Equal(t, 1, stats.TotalRankings)

	var summary analytics.UserSummary
	require.NoError(t, db.Where("user_id = ?", userID).First(&summary).Error)
	require.Equal(t, 1, summary.TotalRankings)
}

func TestRankingEngineRejectsReplayWithDifferentPayload(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankingEngine(db, nil)

	userID, dishID, restaurantID := uuid.New(), uuid.New(), uuid.New()
	env := dishRankedEnvelope(t, userID, dishID, restaurantID, intPtr(8), nil)
	require.NoError(t, engine.Apply(context.Background(), env))

	// Same event id, different dish: not a redelivery but a corrupt reuse.
	forged := dishRankedEnvelope(t, userID, uuid.New(), restaurantID, intPtr(8), nil)
	forged.EventID = env.EventID
	err := engine.Apply(context.Background(), forged)
	require.ErrorIs(t, err, tastetrail_errors.ErrDataIntegrity)
	require.True(t, tastetrail_errors.IsNonRetriable(err))

	// Same triple but a different rank is rejected the same way.
	forged = dishRankedEnvelope(t, userID, dishID, restaurantID, intPtr(3), nil)
	forged.EventID = env.EventID
	err = engine.Apply(context.Background(), forged)
	require.ErrorIs(t, err, tastetrail_errors.ErrDataIntegrity)

	var historyCount int64
	require.NoError(t, db.Model(&ranking.HistoryEntry{}).Where("user_id = ?", userID).Count(&historyCount).Error)
	require.EqualValues(t, 1, historyCount)

	var stats ranking.UserDishStats
	require.NoError(t, db.Where("user_id = ? AND dish_id = ?", userID, dishID).First(&stats).Error)
	require.Equal(t, 1, stats.TotalRankings)
}

func TestRankingEngineUpdatesExistingTriple(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankingEngine(db, nil)

	userID, dishID, restaurantID := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, engine.Apply(context.Background(),
		dishRankedEnvelope(t, userID, dishID, restaurantID, intPtr(4), nil)))
	require.NoError(t, engine.Apply(context.Background(),
		dishRankedEnvelope(t, userID, dishID, restaurantID, nil, tastePtr(ranking.TasteStatusLoved))))

	var count int64
	require.NoError(t, db.Model(&ranking.UserRanking{}).Where("user_id = ?", userID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var rk ranking.UserRanking
	require.NoError(t, db.Where("user_id = ?", userID).First(&rk).Error)
	require.Nil(t, rk.Rank)
	require.NotNil(t, rk.TasteStatus)
	require.Equal(t, ranking.TasteStatusLoved, *rk.TasteStatus)

	var history []ranking.HistoryEntry
	require.NoError(t, db.Where("user_id = ?", userID).Order("created_at ASC").Find(&history).Error)
	require.Len(t, history, 2)
	require.Equal(t, ranking.ChangeTypeUpdated, history[1].ChangeType)

	var stats ranking.UserDishStats
	require.NoError(t, db.Where("user_id = ? AND dish_id = ?", userID, dishID).First(&stats).Error)
	require.Equal(t, 2, stats.TotalRankings)
	require.Equal(t, 1, stats.TotalRestaurants)
}

func TestRankingEngineAwardsDishExpertAcrossRestaurants(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankingEngine(db, nil)

	userID, dishID := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		env := dishRankedEnvelope(t, userID, dishID, uuid.New(), intPtr(9), nil)
		require.NoError(t, engine.Apply(context.Background(), env))
	}

	var expert badge.UserBadge
	require.NoError(t, db.Where("user_id = ? AND badge_type = ?", userID, badge.TypeDishExpert).First(&expert).Error)
	require.True(t, expert.IsCompleted)
	require.Equal(t, 3, expert.CurrentProgress)

	awardTypes := map[badge.Type]bool{}
	for _, row := range outboxEventsOfType(t, db, events.TypeBadgeAwarded) {
		var p events.BadgeProgressPayload
		require.NoError(t, json.Unmarshal(row.Payload, &p))
		awardTypes[p.BadgeType] = true
	}
	require.True(t, awardTypes[badge.TypeFirstTimer])
	require.True(t, awardTypes[badge.TypeDishExpert])
	require.False(t, awardTypes[badge.TypeDishMaster])
}

func TestRankingEngineAwardsDishExplorerAtFiveDishes(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankingEngine(db, nil)

	userID, restaurantID := uuid.New(), uuid.New()
	for i := 0; i < 5; i++ {
		env := dishRankedEnvelope(t, userID, uuid.New(), restaurantID, intPtr(6), nil)
		require.NoError(t, engine.Apply(context.Background(), env))
	}

	var explorer badge.UserBadge
	require.NoError(t, db.Where("user_id = ? AND badge_type = ?", userID, badge.TypeDishExplorer).First(&explorer).Error)
	require.True(t, explorer.IsCompleted)
	require.Equal(t, 5, explorer.CurrentProgress)

	var connoisseur badge.UserBadge
	require.NoError(t, db.Where("user_id = ? AND badge_type = ?", userID, badge.TypeDishConnoisseur).First(&connoisseur).Error)
	require.False(t, connoisseur.IsCompleted)
	require.Equal(t, 5, connoisseur.CurrentProgress)
}

func TestRankingEngineEmitsSingleAwardPerBadge(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankingEngine(db, nil)

	userID, restaurantID := uuid.New(), uuid.New()
	for i := 0; i < 6; i++ {
		env := dishRankedEnvelope(t, userID, uuid.New(), restaurantID, intPtr(7), nil)
		require.NoError(t, engine.Apply(context.Background(), env))
	}

	awardCounts := map[badge.Type]int{}
	for _, row := range outboxEventsOfType(t, db, events.TypeBadgeAwarded) {
		var p events.BadgeProgressPayload
		require.NoError(t, json.Unmarshal(row.Payload, &p))
		awardCounts[p.BadgeType]++
	}
	require.Equal(t, 1, awardCounts[badge.TypeFirstTimer])
	require.Equal(t, 1, awardCounts[badge.TypeDishExplorer])
	require.Zero(t, awardCounts[badge.TypeDishConnoisseur])
}

func TestRankingEngineRejectsBothRankAndTaste(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankingEngine(db, nil)

	env := dishRankedEnvelope(t, uuid.New(), uuid.New(), uuid.New(),
		intPtr(5), tastePtr(ranking.TasteStatusLiked))
	err := engine.Apply(context.Background(), env)

	require.Error(t, err)
	require.True(t, tastetrail_errors.IsNonRetriable(err))
}

func TestRankingEngineRejectsRankOutOfRange(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankingEngine(db, nil)

	env := dishRankedEnvelope(t, uuid.New(), uuid.New(), uuid.New(), intPtr(11), nil)
	err := engine.Apply(context.Background(), env)

	require.Error(t, err)
	require.True(t, tastetrail_errors.IsNonRetriable(err))
}

func TestRankingEngineFailureRollsBackEverything(t *testing.T) {
	db := newTestDB(t)
	engine := NewRankingEngine(db, nil)

	userID, dishID, restaurantID := uuid.New(), uuid.New(), uuid.New()
	env := dishRankedEnvelope(t, userID, dishID, restaurantID, intPtr(8), nil)

	// Dropping the badges table mid-pipeline makes the badge step fail after
	// the ranking writes succeeded; the transaction must take them all back.
	require.NoError(t, db.Migrator().DropTable(&badge.UserBadge{}))
	require.Error(t, engine.Apply(context.Background(), env))

	var rankCount int64
	require.NoError(t, db.Model(&ranking.UserRanking{}).Where("user_id = ?", userID).Count(&rankCount).Error)
	require.Zero(t, rankCount)

	var historyCount int64
	require.NoError(t, db.Model(&ranking.HistoryEntry{}).Where("user_id = ?", userID).Count(&historyCount).Error)
	require.Zero(t, historyCount)

	var stats ranking.UserDishStats
	err := db.Where("user_id = ?", userID).First(&stats).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
