package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/campaign-hub/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChannelState is the per-channel status kept on a hub content item
type ChannelState string

const (
	ChannelStatePending ChannelState = "pending"
	ChannelStateSent    ChannelState = "sent"
	ChannelStatePartial ChannelState = "partially_failed"
	ChannelStateFailed  ChannelState = "failed"
)

// ChannelStateFor maps a dispatch status onto the hub channel state
func ChannelStateFor(status DispatchStatus) ChannelState {
	switch status {
	case DispatchStatusSent:
		return ChannelStateSent
	case DispatchStatusPartiallyFailed:
		return ChannelStatePartial
	case DispatchStatusFailed:
		return ChannelStateFailed
	default:
		return ChannelStatePending
	}
}

// ChannelStatusEntry is one value of HubContent.ChannelStatus
type ChannelStatusEntry struct {
	Status     ChannelState `json:"status"`
	ExternalID *string      `json:"external_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// ChannelStatusMap maps a channel name to its latest dispatch outcome
type ChannelStatusMap map[string]ChannelStatusEntry

// Value implements the driver.Valuer interface for ChannelStatusMap
func (m ChannelStatusMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for ChannelStatusMap
func (m *ChannelStatusMap) Scan(value any) error {
	if value == nil {
		*m = ChannelStatusMap{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ChannelStatusMap", value)
	}
	return json.Unmarshal(bytes, m)
}

// HubContent is the canonical campaign item that fans out to channel dispatches
type HubContent struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:uk_hub_contents_uuid" json:"uuid"`
	Title         string           `gorm:"size:255;not null" json:"title"`
	ChannelStatus ChannelStatusMap `gorm:"type:jsonb;not null;default:'{}'" json:"channel_status"`
	BlogPostID    *uint            `gorm:"index:idx_hub_contents_blog_post_id" json:"blog_post_id,omitempty"`
	CreatedAt     time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `gorm:"index:idx_hub_contents_deleted_at" json:"deleted_at,omitempty"`
}

func (HubContent) TableName() string { return "hub_contents" }

// BeforeCreate ensures UUID and timestamps are set.
func (h *HubContent) BeforeCreate(tx *gorm.DB) error {
	if h.UUID == uuid.Nil {
		h.UUID = uuid.New()
	}
	if h.ChannelStatus == nil {
		h.ChannelStatus = ChannelStatusMap{}
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = utils.UTCNow()
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = h.CreatedAt
	}
	return nil
}
