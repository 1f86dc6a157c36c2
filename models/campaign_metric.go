package models

import "time"

// CampaignMetric aggregates engagement counters for one campaign identifier.
// The conversion rate is always derived from Views and FormSubmissions.
type CampaignMetric struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CampaignID      string    `gorm:"size:128;not null;uniqueIndex:uk_campaign_metrics_campaign_id" json:"campaign_id"`
	Views           int64     `gorm:"not null;default:0" json:"views"`
	UniqueVisitors  int64     `gorm:"not null;default:0" json:"unique_visitors"`
	PhoneClicks     int64     `gorm:"not null;default:0" json:"phone_clicks"`
	FormSubmissions int64     `gorm:"not null;default:0" json:"form_submissions"`
	CreatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CampaignMetric) TableName() string { return "campaign_metrics" }

// ConversionRate returns FormSubmissions / Views, or 0 when there are no views
func (m *CampaignMetric) ConversionRate() float64 {
	if m == nil || m.Views <= 0 {
		return 0
	}
	return float64(m.FormSubmissions) / float64(m.Views)
}

// Counter columns that may be incremented atomically
const (
	MetricColumnViews           = "views"
	MetricColumnUniqueVisitors  = "unique_visitors"
	MetricColumnPhoneClicks     = "phone_clicks"
	MetricColumnFormSubmissions = "form_submissions"
)

// IsMetricColumn guards the column names interpolated into increment statements
func IsMetricColumn(column string) bool {
	switch column {
	case MetricColumnViews, MetricColumnUniqueVisitors, MetricColumnPhoneClicks, MetricColumnFormSubmissions:
		return true
	}
	return false
}
