package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UTMParams holds the optional utm_* query values attached to a short link
type UTMParams map[string]string

// Value implements the driver.Valuer interface for UTMParams
func (u UTMParams) Value() (driver.Value, error) {
	if u == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u)
}

// Scan implements the sql.Scanner interface for UTMParams
func (u *UTMParams) Scan(value any) error {
	if value == nil {
		*u = UTMParams{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into UTMParams", value)
	}
	return json.Unmarshal(bytes, u)
}

// Campaign returns utm_campaign, which ties a link to a CampaignMetric row
func (u UTMParams) Campaign() *string {
	if v, ok := u["utm_campaign"]; ok && v != "" {
		return &v
	}
	return nil
}

// ShortLink maps a short code to a target URL.
// Immutable after creation except ClickCount; never hard-deleted, inert once ExpiresAt passes.
type ShortLink struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Code       string     `gorm:"size:32;not null;uniqueIndex:uk_short_links_code" json:"code"`
	TargetURL  string     `gorm:"type:text;not null" json:"target_url"`
	UTMParams  UTMParams  `gorm:"type:jsonb;not null;default:'{}'" json:"utm_params,omitempty"`
	CampaignID *string    `gorm:"size:128;index:idx_short_links_campaign_id" json:"campaign_id,omitempty"`
	ExpiresAt  *time.Time `gorm:"index:idx_short_links_expires_at" json:"expires_at,omitempty"`
	ClickCount int64      `gorm:"not null;default:0" json:"click_count"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_short_links_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for ShortLink
func (ShortLink) TableName() string { return "short_links" }

// IsExpiredAt reports whether the link is inert at the given instant
func (s *ShortLink) IsExpiredAt(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// ShortLinkFilter provides filter fields for repository queries
type ShortLinkFilter struct {
	ID            *uint
	Code          *string
	CampaignID    *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
