package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/campaign-hub/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// DispatchStatus represents the lifecycle state of a dispatch
type DispatchStatus string

const (
	DispatchStatusDraft           DispatchStatus = "draft"
	DispatchStatusScheduled       DispatchStatus = "scheduled"
	DispatchStatusSending         DispatchStatus = "sending"
	DispatchStatusSent            DispatchStatus = "sent"
	DispatchStatusPartiallyFailed DispatchStatus = "partially_failed"
	DispatchStatusFailed          DispatchStatus = "failed"
	DispatchStatusDeleted         DispatchStatus = "deleted"
)

// String returns the string representation of the status
func (s DispatchStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s DispatchStatus) Valid() bool {
	switch s {
	case DispatchStatusDraft, DispatchStatusScheduled, DispatchStatusSending,
		DispatchStatusSent, DispatchStatusPartiallyFailed, DispatchStatusFailed,
		DispatchStatusDeleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the scheduler will never act on the dispatch again
func (s DispatchStatus) IsTerminal() bool {
	return s == DispatchStatusSent || s == DispatchStatusFailed || s == DispatchStatusDeleted
}

// IsEditable reports whether user edits (text, schedule, cancel) are accepted
func (s DispatchStatus) IsEditable() bool {
	return s == DispatchStatusDraft || s == DispatchStatusScheduled
}

// CanTransitionTo validates a status change.
// failed -> scheduled is the explicit reschedule path; sent -> partially_failed
// happens when delivery reports arrive after the send.
func (s DispatchStatus) CanTransitionTo(next DispatchStatus) bool {
	if next == DispatchStatusDeleted {
		return s != DispatchStatusSending && s != DispatchStatusDeleted
	}
	switch s {
	case DispatchStatusDraft:
		return next == DispatchStatusScheduled
	case DispatchStatusScheduled:
		return next == DispatchStatusSending || next == DispatchStatusScheduled
	case DispatchStatusSending:
		return next == DispatchStatusSent || next == DispatchStatusPartiallyFailed || next == DispatchStatusFailed
	case DispatchStatusFailed:
		return next == DispatchStatusScheduled
	case DispatchStatusSent:
		return next == DispatchStatusPartiallyFailed
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for DispatchStatus
func (s *DispatchStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = DispatchStatus(v)
	case []byte:
		*s = DispatchStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DispatchStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for DispatchStatus
func (s DispatchStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid DispatchStatus: %s", s)
	}
	return string(s), nil
}

// RecipientState is the delivery outcome for one recipient
type RecipientState string

const (
	RecipientStatePending     RecipientState = "pending"
	RecipientStateAccepted    RecipientState = "accepted"
	RecipientStateDelivered   RecipientState = "delivered"
	RecipientStateUndelivered RecipientState = "undelivered"
	RecipientStateFailed      RecipientState = "failed"
)

// IsFailure reports whether the recipient did not (or will not) receive the message
func (s RecipientState) IsFailure() bool {
	return s == RecipientStateFailed || s == RecipientStateUndelivered
}

// RecipientOutcome is one value of Dispatch.PerRecipientResult
type RecipientOutcome struct {
	Status      RecipientState `json:"status"`
	ErrorCode   *string        `json:"error_code,omitempty"`
	Description *string        `json:"description,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// RecipientResultMap maps a recipient number to its latest outcome
type RecipientResultMap map[string]RecipientOutcome

// Value implements the driver.Valuer interface for RecipientResultMap
func (m RecipientResultMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for RecipientResultMap
func (m *RecipientResultMap) Scan(value any) error {
	if value == nil {
		*m = RecipientResultMap{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RecipientResultMap", value)
	}
	return json.Unmarshal(bytes, m)
}

// FailedCount returns how many recipients are marked failed or undelivered
func (m RecipientResultMap) FailedCount() int {
	n := 0
	for _, o := range m {
		if o.Status.IsFailure() {
			n++
		}
	}
	return n
}

// Dispatch is one channel-specific, chunked send job
type Dispatch struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	UUID               uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:uk_dispatches_uuid" json:"uuid"`
	BatchGroupID       uuid.UUID          `gorm:"type:uuid;not null;index:idx_dispatches_batch_group_id" json:"batch_group_id"`
	HubContentID       *uint              `gorm:"index:idx_dispatches_hub_content_id" json:"hub_content_id,omitempty"`
	Channel            ChannelType        `gorm:"size:20;not null;index:idx_dispatches_channel" json:"channel"`
	ChunkIndex         int                `gorm:"not null;default:0" json:"chunk_index"`
	RecipientNumbers   pq.StringArray     `gorm:"type:text[];not null" json:"recipient_numbers"`
	MessageText        string             `gorm:"type:text;not null" json:"message_text"`
	ChannelOptions     ChannelOptions     `gorm:"type:jsonb;not null;default:'{}'" json:"channel_options"`
	MediaRef           *string            `gorm:"type:text" json:"media_ref,omitempty"`
	MediaHandle        *string            `gorm:"type:text" json:"media_handle,omitempty"`
	ScheduledAt        *time.Time         `gorm:"index:idx_dispatches_due,priority:2" json:"scheduled_at,omitempty"`
	Status             DispatchStatus     `gorm:"size:20;not null;default:'draft';index:idx_dispatches_due,priority:1" json:"status"`
	ExternalGroupID    *string            `gorm:"size:128;index:idx_dispatches_external_group_id" json:"external_group_id,omitempty"`
	PerRecipientResult RecipientResultMap `gorm:"type:jsonb;not null;default:'{}'" json:"per_recipient_result"`
	LastError          *string            `gorm:"type:text" json:"last_error,omitempty"`
	ClaimedAt          *time.Time         `json:"claimed_at,omitempty"`
	SentAt             *time.Time         `json:"sent_at,omitempty"`
	DeletedAt          *time.Time         `gorm:"index:idx_dispatches_deleted_at" json:"deleted_at,omitempty"`
	CreatedAt          time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_dispatches_created_at" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Dispatch) TableName() string { return "dispatches" }

// BeforeCreate ensures identifiers and timestamps are set.
func (d *Dispatch) BeforeCreate(tx *gorm.DB) error {
	if d.UUID == uuid.Nil {
		d.UUID = uuid.New()
	}
	if d.PerRecipientResult == nil {
		d.PerRecipientResult = RecipientResultMap{}
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = utils.UTCNow()
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	return nil
}

// Payload builds the channel-specific payload carried by this dispatch
func (d *Dispatch) Payload() (ChannelPayload, error) {
	return NewChannelPayload(d.Channel, d.MessageText, d.MediaRef, d.ChannelOptions)
}

// DispatchFilter provides filter fields for repository queries
type DispatchFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	BatchGroupID   *uuid.UUID
	HubContentID   *uint
	Channel        *ChannelType
	Status         *DispatchStatus
	IncludeDeleted bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}
