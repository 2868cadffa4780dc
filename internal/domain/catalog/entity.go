package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Restaurant represents the restaurants table. SourceID is the natural key
// assigned by the import feed; it is what makes imports idempotent.
type Restaurant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SourceID  string    `gorm:"type:varchar(128);not null;uniqueIndex"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Address   string    `gorm:"type:varchar(255)"`
	City      string    `gorm:"type:varchar(128);index"`
	Cuisine   string    `gorm:"type:varchar(64)"`
	Latitude  float64
	Longitude float64
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Dish represents the dishes table.
type Dish struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	RestaurantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name         string    `gorm:"type:varchar(255);not null"`
	Category     string    `gorm:"type:varchar(64)"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (Restaurant) TableName() string {
	return "restaurants"
}

func (Dish) TableName() string {
	return "dishes"
}
