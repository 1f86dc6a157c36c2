package dto

import "time"

// KakaoButtonDTO is a link button attached to a Kakao message
type KakaoButtonDTO struct {
	Name string `json:"name" validate:"required,max=28"`
	URL  string `json:"url" validate:"required,url"`
}

// ChannelOptionsDTO carries channel specific options
type ChannelOptionsDTO struct {
	Subject       *string          `json:"subject,omitempty" validate:"omitempty,max=40"`
	TemplateCode  *string          `json:"template_code,omitempty" validate:"omitempty,max=64"`
	Buttons       []KakaoButtonDTO `json:"buttons,omitempty" validate:"omitempty,max=5,dive"`
	FallbackToSMS bool             `json:"fallback_to_sms,omitempty"`
}

// CreateDispatchCampaignRequest represents the request to batch a message for a recipient list
type CreateDispatchCampaignRequest struct {
	HubContentID *uint              `json:"hub_content_id,omitempty"`
	Channel      string             `json:"channel" validate:"required,channel"`
	Recipients   []string           `json:"recipients" validate:"required,min=1,dive,phone_number"`
	MessageText  string             `json:"message_text" validate:"required,max=2000"`
	MediaRef     *string            `json:"media_ref,omitempty" validate:"omitempty,max=2048"`
	ScheduledAt  *time.Time         `json:"scheduled_at,omitempty"`
	Options      *ChannelOptionsDTO `json:"options,omitempty"`
}

// CreateDispatchCampaignResponse lists the dispatches created for one batch group
type CreateDispatchCampaignResponse struct {
	Message         string             `json:"message"`
	BatchGroupID    string             `json:"batch_group_id"`
	TotalRecipients int                `json:"total_recipients"`
	Dispatches      []DispatchResponse `json:"dispatches"`
}

// RecipientResultDTO is the latest delivery outcome of one recipient
type RecipientResultDTO struct {
	Status      string  `json:"status"`
	ErrorCode   *string `json:"error_code,omitempty"`
	Description *string `json:"description,omitempty"`
	UpdatedAt   string  `json:"updated_at"`
}

// DispatchResponse represents a dispatch in responses
type DispatchResponse struct {
	ID                 uint                          `json:"id"`
	UUID               string                        `json:"uuid"`
	BatchGroupID       string                        `json:"batch_group_id"`
	HubContentID       *uint                         `json:"hub_content_id,omitempty"`
	Channel            string                        `json:"channel"`
	ChunkIndex         int                           `json:"chunk_index"`
	RecipientCount     int                           `json:"recipient_count"`
	Recipients         []string                      `json:"recipients,omitempty"`
	MessageText        string                        `json:"message_text"`
	MediaRef           *string                       `json:"media_ref,omitempty"`
	MediaHandle        *string                       `json:"media_handle,omitempty"`
	ScheduledAt        *string                       `json:"scheduled_at,omitempty"`
	Status             string                        `json:"status"`
	ExternalGroupID    *string                       `json:"external_group_id,omitempty"`
	FailedCount        int                           `json:"failed_count"`
	PerRecipientResult map[string]RecipientResultDTO `json:"per_recipient_result,omitempty"`
	LastError          *string                       `json:"last_error,omitempty"`
	SentAt             *string                       `json:"sent_at,omitempty"`
	DeletedAt          *string                       `json:"deleted_at,omitempty"`
	CreatedAt          string                        `json:"created_at"`
	UpdatedAt          string                        `json:"updated_at"`
}

// ListDispatchesRequest represents dispatch list filters
type ListDispatchesRequest struct {
	HubContentID *uint   `json:"hub_content_id,omitempty"`
	BatchGroupID *string `json:"batch_group_id,omitempty" validate:"omitempty,uuid"`
	Status       *string `json:"status,omitempty"`
	Channel      *string `json:"channel,omitempty" validate:"omitempty,channel"`
	Page         int     `json:"page"`
	Limit        int     `json:"limit"`
}

// ListDispatchesResponse represents a paginated list of dispatches
type ListDispatchesResponse struct {
	Items      []DispatchResponse `json:"items"`
	Pagination PaginationInfo     `json:"pagination"`
}

// UpdateDispatchRequest represents an edit to a not yet sent dispatch
type UpdateDispatchRequest struct {
	MessageText *string `json:"message_text,omitempty" validate:"omitempty,min=1,max=2000"`
	MediaRef    *string `json:"media_ref,omitempty" validate:"omitempty,max=2048"`
}

// RescheduleDispatchRequest represents the request to move a dispatch in time
type RescheduleDispatchRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// DispatchAuditLogResponse represents one audit row of a dispatch
type DispatchAuditLogResponse struct {
	ID          uint    `json:"id"`
	Action      string  `json:"action"`
	FromStatus  *string `json:"from_status,omitempty"`
	ToStatus    *string `json:"to_status,omitempty"`
	Description *string `json:"description,omitempty"`
	RequestID   *string `json:"request_id,omitempty"`
	Success     bool    `json:"success"`
	CreatedAt   string  `json:"created_at"`
}

// RunSchedulerResponse summarizes one poll cycle
type RunSchedulerResponse struct {
	Due             int `json:"due"`
	Claimed         int `json:"claimed"`
	Conflicts       int `json:"conflicts"`
	Sent            int `json:"sent"`
	PartiallyFailed int `json:"partially_failed"`
	Failed          int `json:"failed"`
}
