package model

import "time"

// Container is a tracked intermodal container tied to a load.
type Container struct {
	ID              int64  `gorm:"primaryKey"`
	ContainerNumber string `gorm:"uniqueIndex;size:50;not null"`
	CustomerID      int64  `gorm:"index;not null"`
	LoadNumber      string `gorm:"size:64"`

	// Flat freight rate for the load, included once in snapshots. Decimal
	// string, empty when not billed through this system.
	BaseFreightRate string `gorm:"size:32"`

	PickupLocation   string `gorm:"size:255"`
	DeliveryLocation string `gorm:"size:255"`

	// TrackingActive keeps the container in the periodic tick set.
	TrackingActive bool `gorm:"index;not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Customer Customer `gorm:"constraint:OnDelete:CASCADE"`
}
