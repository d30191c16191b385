package domain

import "time"

// Neighborhood represents a CBS neighborhood (buurt) within a municipality,
// upserted by its natural code during city ingestion. Derived statistics are
// nullable because the upstream datasets omit values for small regions.
type Neighborhood struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Code              string     `gorm:"type:text;not null;uniqueIndex:idx_neighborhoods_code" json:"code"`
	Name              string     `gorm:"type:text;not null" json:"name"`
	City              string     `gorm:"type:text;not null;index:idx_neighborhoods_city" json:"city"`
	Type              string     `gorm:"type:text" json:"type"`
	Latitude          float64    `json:"latitude"`
	Longitude         float64    `json:"longitude"`
	PopulationDensity *int       `json:"population_density,omitempty"`
	AverageWozValue   *float64   `json:"average_woz_value,omitempty"`
	CrimeRate         *float64   `json:"crime_rate,omitempty"`
	LastUpdated       *time.Time `json:"last_updated,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Neighborhood.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Neighborhood) TableName() string {
	return "neighborhoods"
}
