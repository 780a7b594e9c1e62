package model

import "time"

// PushSubscription holds a browser push subscription for an ops user who
// wants alert notifications for specific containers.
type PushSubscription struct {
	Endpoint  string `gorm:"primaryKey"`
	P256DH    string `gorm:"column:p256dh;not null"`
	Auth      string `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Containers []*Container `gorm:"many2many:subscription_container_mapping;"`
}
