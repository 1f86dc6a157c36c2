package models

import "time"

// PageViewEvent is an append-only record of one landing page view
type PageViewEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CampaignID string    `gorm:"size:128;not null;index:idx_page_view_events_campaign_id" json:"campaign_id"`
	PageURL    string    `gorm:"type:text;not null" json:"page_url"`
	UserAgent  *string   `gorm:"type:text" json:"user_agent,omitempty"`
	IPAddress  *string   `gorm:"size:64" json:"ip_address,omitempty"`
	Referer    *string   `gorm:"type:text" json:"referer,omitempty"`
	VisitorKey string    `gorm:"size:64;not null;index:idx_page_view_events_visitor" json:"visitor_key"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_page_view_events_created_at" json:"created_at"`
}

func (PageViewEvent) TableName() string { return "page_view_events" }
