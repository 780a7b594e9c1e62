package model

import "time"

// ChargeCategory is the kind of charge a line bills for.
type ChargeCategory string

const (
	ChargePerDiem     ChargeCategory = "per_diem"
	ChargeDemurrage   ChargeCategory = "demurrage"
	ChargeDetention   ChargeCategory = "detention"
	ChargeBaseFreight ChargeCategory = "base_freight"
)

// ChargeStatus is the billing state of a charge line.
type ChargeStatus string

const (
	ChargeAccrued  ChargeStatus = "accrued"
	ChargeInvoiced ChargeStatus = "invoiced"
	ChargeVoided   ChargeStatus = "voided"
)

// ChargeLine is one accrual unit of a time-based charge. At most one
// non-voided line exists per (container, category, period start);
// recomputation updates or voids, never duplicates.
type ChargeLine struct {
	ID          int64          `gorm:"primaryKey"`
	ContainerID int64          `gorm:"index:idx_charge_container_category;not null"`
	Category    ChargeCategory `gorm:"index:idx_charge_container_category;size:16;not null"`

	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"`

	// RateUsed is snapshotted at creation; later contract changes do not
	// retroactively alter accrued lines.
	RateUsed   string `gorm:"size:32;not null"`
	Amount     string `gorm:"size:32;not null"`
	Currency   string `gorm:"size:8;not null"`
	ContractID int64  `gorm:"not null"`

	Status     ChargeStatus `gorm:"index;size:16;not null"`
	SnapshotID *int64       `gorm:"index"`
	VoidedAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
