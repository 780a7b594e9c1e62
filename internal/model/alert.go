package model

import "time"

// Alert is a scheduled pre-deadline warning for an open free-time window.
// Identity is (container, category, kind); when the underlying deadline
// changes the alert is superseded and replaced, never edited.
type Alert struct {
	ID          int64          `gorm:"primaryKey"`
	ContainerID int64          `gorm:"index:idx_alert_container;not null"`
	Category    ChargeCategory `gorm:"index:idx_alert_container;size:16;not null"`
	// Kind names the lead-time slot, e.g. "standard" or "urgent".
	Kind string `gorm:"size:32;not null"`

	// Deadline is the window deadline the alert was derived from. Used to
	// detect staleness on recompute.
	Deadline    time.Time `gorm:"not null"`
	ScheduledAt time.Time `gorm:"index;not null"`

	FiredAt        *time.Time
	Superseded     bool `gorm:"index;not null"`
	AcknowledgedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
