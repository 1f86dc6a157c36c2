package dto

import "time"

// CreateShortLinkRequest represents the request to shorten a URL
type CreateShortLinkRequest struct {
	TargetURL string            `json:"target_url" validate:"required,max=2048"`
	UTM       map[string]string `json:"utm,omitempty" validate:"omitempty,max=10,dive,keys,max=64,endkeys,max=255"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// ShortLinkResponse represents a short link in responses
type ShortLinkResponse struct {
	ID         uint              `json:"id"`
	Code       string            `json:"code"`
	ShortURL   string            `json:"short_url"`
	TargetURL  string            `json:"target_url"`
	UTMParams  map[string]string `json:"utm_params,omitempty"`
	CampaignID *string           `json:"campaign_id,omitempty"`
	ExpiresAt  *string           `json:"expires_at,omitempty"`
	ClickCount int64             `json:"click_count"`
	CreatedAt  string            `json:"created_at"`
}
