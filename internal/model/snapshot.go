package model

import "time"

// BillingSnapshot is an invoice-ready aggregation of charge lines for a
// container at an instant. Immutable once created; a later change produces a
// new snapshot.
type BillingSnapshot struct {
	ID          int64  `gorm:"primaryKey"`
	Number      string `gorm:"uniqueIndex;size:32;not null"` // INV-YYYYMM-NNNNN
	ContainerID int64  `gorm:"index;not null"`
	CustomerID  int64  `gorm:"index;not null"`
	ContractID  int64  `gorm:"not null"` // contract version in force at assembly

	Final      bool      `gorm:"not null"`
	SnapshotAt time.Time `gorm:"not null"`

	Total    string `gorm:"size:32;not null"`
	Currency string `gorm:"size:8;not null"`

	RequiresReview bool `gorm:"not null"`
	DueDate        *time.Time

	CreatedAt time.Time

	// Associations
	Lines []SnapshotLine `gorm:"foreignKey:SnapshotID"`
}

// SnapshotLine is one ordered line item within a snapshot.
type SnapshotLine struct {
	ID           int64 `gorm:"primaryKey"`
	SnapshotID   int64 `gorm:"index;not null"`
	ItemNumber   int   `gorm:"not null"`
	ChargeLineID int64 `gorm:"not null"`
	Description  string `gorm:"size:500;not null"`
	Quantity     float64 `gorm:"not null"`
	UnitPrice    string  `gorm:"size:32;not null"`
	Amount       string  `gorm:"size:32;not null"`
}
