package models

import "time"

// MediaHandle remembers the gateway upload handle issued for a media source
type MediaHandle struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	SourceURL string      `gorm:"type:text;not null;uniqueIndex:uk_media_handles_source_channel,priority:1" json:"source_url"`
	Channel   ChannelType `gorm:"size:20;not null;uniqueIndex:uk_media_handles_source_channel,priority:2" json:"channel"`
	Handle    string      `gorm:"type:text;not null" json:"handle"`
	CreatedAt time.Time   `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (MediaHandle) TableName() string { return "media_handles" }
