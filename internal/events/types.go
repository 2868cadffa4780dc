package events

import "fmt"

// Type enumerates every notification the pipeline produces or consumes.
// Routing is keyed by Type; ParseType rejects anything outside the set so a
// new event type is a deliberate code change, not a silently ignored string.
type Type string

const (
	TypeDishRanked           Type = "DISH_RANKED"
	TypeBadgeProgressUpdated Type = "BADGE_PROGRESS_UPDATED"
	TypeBadgeAwarded         Type = "BADGE_AWARDED"
	TypeRestaurantImported   Type = "RESTAURANT_IMPORTED"
)

// All lists the known event types in a stable order.
func All() []Type {
	return []Type{
		TypeDishRanked,
		TypeBadgeProgressUpdated,
		TypeBadgeAwarded,
		TypeRestaurantImported,
	}
}

// ParseType validates a raw event type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeDishRanked, TypeBadgeProgressUpdated, TypeBadgeAwarded, TypeRestaurantImported:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// StreamKey returns the bus stream a type routes to.
func (t Type) StreamKey() string {
	return "events:" + string(t)
}

// Producing component identifiers used in the envelope Source field.
const (
	SourceAPI    = "tastetrail-api"
	SourceEngine = "tastetrail-ranking-engine"
	SourceImport = "tastetrail-import"
)
