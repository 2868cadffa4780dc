package services

import (
	"tastetrail/internal/domain/badge"
)

// ActivitySnapshot is the user activity a badge decision is made from, taken
// inside the engine's transaction after the ranking write.
type ActivitySnapshot struct {
	// TotalRankings is how many current rankings the user holds.
	TotalRankings int
	// DistinctDishes is how many different dishes the user has ranked.
	DistinctDishes int
	// RestaurantsForDish is at how many restaurants the user has ranked the
	// dish this event is about.
	RestaurantsForDish int
}

// BadgeProgress is the evaluated progress for one badge type.
type BadgeProgress struct {
	Type    badge.Type
	Current int
	Target  int
}

// Completed reports whether progress has reached the target.
func (p BadgeProgress) Completed() bool {
	return p.Current >= p.Target
}

// EvaluateBadges computes progress for every badge type in the fixed
// evaluation order. Progress is capped at the target so completed badges
// stay at 100%.
func EvaluateBadges(s ActivitySnapshot) []BadgeProgress {
	out := make([]BadgeProgress, 0, len(badge.EvaluationOrder))
	for _, t := range badge.EvaluationOrder {
		target := badge.Target(t)
		var current int
		switch t {
		case badge.TypeFirstTimer:
			current = s.TotalRankings
		case badge.TypeDishExplorer, badge.TypeDishConnoisseur:
			current = s.DistinctDishes
		case badge.TypeDishExpert, badge.TypeDishMaster:
			current = s.RestaurantsForDish
		}
		if current > target {
			current = target
		}
		out = append(out, BadgeProgress{Type: t, Current: current, Target: target})
	}
	return out
}
