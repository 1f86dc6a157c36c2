package models

import (
	"time"
)

// DeliveryStatusJob is a planned read of the gateway delivery report for one sent dispatch
type DeliveryStatusJob struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CorrelationID   string     `gorm:"size:64;index:idx_delivery_status_jobs_corr_id;not null" json:"correlation_id"`
	DispatchID      uint       `gorm:"index:idx_delivery_status_jobs_dispatch_id;not null" json:"dispatch_id"`
	ExternalGroupID string     `gorm:"size:128;not null" json:"external_group_id"`
	RetryCount      int        `gorm:"not null;default:0" json:"retry_count"`
	ScheduledAt     time.Time  `gorm:"index:idx_delivery_status_jobs_scheduled_retry;not null" json:"scheduled_at"`
	ExecutedAt      *time.Time `json:"executed_at,omitempty"`
	Error           *string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');not null" json:"updated_at"`
}

func (DeliveryStatusJob) TableName() string { return "delivery_status_jobs" }
