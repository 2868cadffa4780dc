package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tastetrail/internal/domain/catalog"
	tastetrail_errors "tastetrail/pkg/errors"
)

// CatalogRepository manages restaurants and dishes.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetRestaurantBySourceID looks a restaurant up by its import natural key.
func (r *CatalogRepository) GetRestaurantBySourceID(ctx context.Context, sourceID string) (*catalog.Restaurant, error) {
	var restaurant catalog.Restaurant
	err := r.db.WithContext(ctx).Where("source_id = ?", sourceID).First(&restaurant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tastetrail_errors.ErrNotFound
		}
		return nil, err
	}
	return &restaurant, nil
}

func (r *CatalogRepository) CreateRestaurant(ctx context.Context, restaurant *catalog.Restaurant) error {
	if restaurant.ID == uuid.Nil {
		restaurant.ID = uuid.New()
	}
	now := time.Now().UTC()
	if restaurant.CreatedAt.IsZero() {
		restaurant.CreatedAt = now
	}
	restaurant.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(restaurant).Error; err != nil {
		if isUniqueViolation(err) {
			return tastetrail_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// ExistingSourceIDs reports which of the given source ids are already in
// the catalog. Import intake uses it to drop records that would never
// advance their batch.
func (r *CatalogRepository) ExistingSourceIDs(ctx context.Context, sourceIDs []string) (map[string]bool, error) {
	if len(sourceIDs) == 0 {
		return map[string]bool{}, nil
	}
	var found []string
	err := r.db.WithContext(ctx).
		Model(&catalog.Restaurant{}).
		Where("source_id IN ?", sourceIDs).
		Pluck("source_id", &found).Error
	if err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(found))
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}
