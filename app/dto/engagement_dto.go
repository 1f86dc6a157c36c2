package dto

// RecordViewRequest represents a landing page view beacon
type RecordViewRequest struct {
	CampaignID string  `json:"campaign_id" validate:"required,max=128"`
	PageURL    string  `json:"page_url" validate:"required,max=2048"`
	Referer    *string `json:"referer,omitempty" validate:"omitempty,max=2048"`
}

// RecordCampaignEventRequest represents a phone click or form submission beacon
type RecordCampaignEventRequest struct {
	CampaignID string `json:"campaign_id" validate:"required,max=128"`
}

// RecordEngagementResponse acknowledges a recorded engagement event
type RecordEngagementResponse struct {
	Message    string `json:"message"`
	CampaignID string `json:"campaign_id"`
}

// CampaignMetricsResponse represents the counters of one campaign
type CampaignMetricsResponse struct {
	CampaignID      string  `json:"campaign_id"`
	Views           int64   `json:"views"`
	UniqueVisitors  int64   `json:"unique_visitors"`
	PhoneClicks     int64   `json:"phone_clicks"`
	FormSubmissions int64   `json:"form_submissions"`
	ConversionRate  float64 `json:"conversion_rate"`
}
