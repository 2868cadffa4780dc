package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tastetrail/internal/domain/badge"
)

func progressFor(t *testing.T, all []BadgeProgress, bt badge.Type) BadgeProgress {
	t.Helper()
	for _, p := range all {
		if p.Type == bt {
			return p
		}
	}
	t.Fatalf("no progress for %s", bt)
	return BadgeProgress{}
}

func TestEvaluateBadgesFirstRanking(t *testing.T) {
	all := EvaluateBadges(ActivitySnapshot{
		TotalRankings:      1,
		DistinctDishes:     1,
		RestaurantsForDish: 1,
	})

	ft := progressFor(t, all, badge.TypeFirstTimer)
	require.True(t, ft.Completed())
	require.Equal(t, 1, ft.Current)

	explorer := progressFor(t, all, badge.TypeDishExplorer)
	require.False(t, explorer.Completed())
	require.Equal(t, 1, explorer.Current)
	require.Equal(t, 5, explorer.Target)
}

func TestEvaluateBadgesDistinctDishThresholds(t *testing.T) {
	all := EvaluateBadges(ActivitySnapshot{
		TotalRankings:      5,
		DistinctDishes:     5,
		RestaurantsForDish: 1,
	})
	require.True(t, progressFor(t, all, badge.TypeDishExplorer).Completed())
	require.False(t, progressFor(t, all, badge.TypeDishConnoisseur).Completed())

	all = EvaluateBadges(ActivitySnapshot{
		TotalRankings:      10,
		DistinctDishes:     10,
		RestaurantsForDish: 1,
	})
	require.True(t, progressFor(t, all, badge.TypeDishConnoisseur).Completed())
}

func TestEvaluateBadgesRestaurantThresholds(t *testing.T) {
	all := EvaluateBadges(ActivitySnapshot{
		TotalRankings:      3,
		DistinctDishes:     1,
		RestaurantsForDish: 3,
	})
	require.True(t, progressFor(t, all, badge.TypeDishExpert).Completed())

	master := progressFor(t, all, badge.TypeDishMaster)
	require.False(t, master.Completed())
	require.Equal(t, 3, master.Current)
	require.Equal(t, 5, master.Target)

	all = EvaluateBadges(ActivitySnapshot{
		TotalRankings:      5,
		DistinctDishes:     1,
		RestaurantsForDish: 5,
	})
	require.True(t, progressFor(t, all, badge.TypeDishMaster).Completed())
}

func TestEvaluateBadgesProgressIsCappedAtTarget(t *testing.T) {
	all := EvaluateBadges(ActivitySnapshot{
		TotalRankings:      40,
		DistinctDishes:     25,
		RestaurantsForDish: 9,
	})

	for _, p := range all {
		require.LessOrEqual(t, p.Current, p.Target)
	}
}

func TestEvaluateBadgesFollowsEvaluationOrder(t *testing.T) {
	all := EvaluateBadges(ActivitySnapshot{TotalRankings: 1, DistinctDishes: 1, RestaurantsForDish: 1})

	require.Len(t, all, len(badge.EvaluationOrder))
	for i, p := range all {
		require.Equal(t, badge.EvaluationOrder[i], p.Type)
	}
}
