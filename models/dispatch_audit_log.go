package models

import (
	"encoding/json"
	"time"
)

// DispatchAuditLog records every state-changing action on a dispatch
type DispatchAuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	DispatchID   uint            `gorm:"not null;index:idx_dispatch_audit_dispatch_id" json:"dispatch_id"`
	Action       string          `gorm:"size:50;not null;index:idx_dispatch_audit_action" json:"action"`
	FromStatus   *string         `gorm:"size:20" json:"from_status,omitempty"`
	ToStatus     *string         `gorm:"size:20" json:"to_status,omitempty"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_dispatch_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_dispatch_audit_created_at" json:"created_at"`
}

func (DispatchAuditLog) TableName() string {
	return "dispatch_audit_logs"
}

// Audit action constants
const (
	DispatchActionCreated         = "created"
	DispatchActionUpdated         = "updated"
	DispatchActionRescheduled     = "rescheduled"
	DispatchActionCanceled        = "canceled"
	DispatchActionClaimed         = "claimed"
	DispatchActionReleased        = "released"
	DispatchActionSent            = "sent"
	DispatchActionPartiallyFailed = "partially_failed"
	DispatchActionFailed          = "failed"
	DispatchActionReconciled      = "reconciled"
	DispatchActionNotifyFailed    = "notify_failed"
)

// DispatchAuditLogFilter represents filter criteria for audit log queries
type DispatchAuditLogFilter struct {
	DispatchID    *uint
	Action        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
