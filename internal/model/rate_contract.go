package model

import "time"

// RoundingPolicy controls how a free-time deadline is derived from the
// window start.
type RoundingPolicy string

const (
	// RoundWholeDay rounds the start up to the next UTC midnight before
	// counting free days.
	RoundWholeDay RoundingPolicy = "whole_day"
	// RoundHalfDay counts free time in 12-hour units from the start.
	RoundHalfDay RoundingPolicy = "half_day"
	// RoundHourly counts exact hours from the start.
	RoundHourly RoundingPolicy = "hourly"
)

// RateContract is one version of a customer's billing terms. Contracts are
// append-only: a superseded version gets its EffectiveTo set and a new row is
// created, never edited in place.
type RateContract struct {
	ID         int64 `gorm:"primaryKey"`
	CustomerID int64 `gorm:"index;not null"`

	// Daily rates as decimal strings, e.g. "100.00".
	PerDiemRate   string `gorm:"size:32;not null"`
	DemurrageRate string `gorm:"size:32;not null"`
	DetentionRate string `gorm:"size:32;not null"`
	Currency      string `gorm:"size:8;not null"`

	PerDiemFreeDays   int `gorm:"not null"`
	DemurrageFreeDays int `gorm:"not null"`
	DetentionFreeDays int `gorm:"not null"`

	RoundingPolicy RoundingPolicy `gorm:"size:16;not null"`

	// [EffectiveFrom, EffectiveTo) half-open. Nil EffectiveTo means the
	// contract is open-ended.
	EffectiveFrom time.Time `gorm:"index;not null"`
	EffectiveTo   *time.Time

	PaymentTerms string `gorm:"size:50"`

	CreatedAt time.Time
}

// Covers reports whether the contract is in force at the given instant.
func (rc *RateContract) Covers(at time.Time) bool {
	if at.Before(rc.EffectiveFrom) {
		return false
	}
	return rc.EffectiveTo == nil || at.Before(*rc.EffectiveTo)
}

// Rate returns the daily rate for a charge category.
func (rc *RateContract) Rate(category ChargeCategory) string {
	switch category {
	case ChargeDemurrage:
		return rc.DemurrageRate
	case ChargeDetention:
		return rc.DetentionRate
	default:
		return rc.PerDiemRate
	}
}

// FreeDays returns the free-day allowance for a charge category.
func (rc *RateContract) FreeDays(category ChargeCategory) int {
	switch category {
	case ChargeDemurrage:
		return rc.DemurrageFreeDays
	case ChargeDetention:
		return rc.DetentionFreeDays
	default:
		return rc.PerDiemFreeDays
	}
}
