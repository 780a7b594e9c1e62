package model

import "time"

// Customer is a billed party synced from the load-management system.
type Customer struct {
	ID          int64  `gorm:"primaryKey"`
	ExternalRef string `gorm:"uniqueIndex;size:64;not null"` // TMS customer id
	Name        string `gorm:"size:255;not null"`
	Email       string `gorm:"size:255"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Associations
	Contracts []RateContract `gorm:"foreignKey:CustomerID"`
}
