package model

import "time"

// MilestoneType identifies a container lifecycle event.
type MilestoneType string

const (
	MilestoneVesselArrived      MilestoneType = "vessel_arrived"
	MilestoneDischarged         MilestoneType = "discharged"
	MilestoneAvailableForPickup MilestoneType = "available_for_pickup"
	MilestonePickedUp           MilestoneType = "picked_up"
	MilestoneDelivered          MilestoneType = "delivered"
	MilestoneEmptyReturned      MilestoneType = "empty_returned"
)

// MilestoneSource records how a milestone entered the ledger.
type MilestoneSource string

const (
	SourceWebhook MilestoneSource = "webhook"
	SourceManual  MilestoneSource = "manual"
	SourceSync    MilestoneSource = "sync"
)

// Milestone is one append-only ledger entry. Rows are never updated or
// deleted; a correction arrives as a new row with a different OccurredAt and
// is absorbed by recomputation downstream.
type Milestone struct {
	ID          int64           `gorm:"primaryKey"`
	ContainerID int64           `gorm:"uniqueIndex:idx_milestone_identity;not null"`
	Type        MilestoneType   `gorm:"uniqueIndex:idx_milestone_identity;size:32;not null"`
	OccurredAt  time.Time       `gorm:"uniqueIndex:idx_milestone_identity;not null"`
	Source      MilestoneSource `gorm:"size:16;not null"`
	ReceivedAt  time.Time       `gorm:"not null"`
}
