package models

import (
	"time"

	"github.com/amirphl/campaign-hub/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MultimediaAsset is an uploaded image kept on local disk until a dispatch
// needs it. Width and Height are zero when the header could not be decoded.
type MultimediaAsset struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID             uuid.UUID `gorm:"type:uuid;uniqueIndex:uk_multimedia_assets_uuid;not null" json:"uuid"`
	OriginalFilename string    `gorm:"size:255;not null" json:"original_filename"`
	StoredPath       string    `gorm:"type:text;not null" json:"-"`
	SizeBytes        int64     `gorm:"not null" json:"size_bytes"`
	MimeType         string    `gorm:"size:100;not null" json:"mime_type"`
	Extension        string    `gorm:"size:20;not null" json:"extension"`
	Width            int       `gorm:"not null;default:0" json:"width"`
	Height           int       `gorm:"not null;default:0" json:"height"`
	CreatedAt        time.Time `gorm:"index:idx_multimedia_assets_created_at" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (MultimediaAsset) TableName() string { return "multimedia_assets" }

func (m *MultimediaAsset) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	now := utils.UTCNow()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	return nil
}

// MediaRef is the reference a dispatch stores to point at this asset
func (m *MultimediaAsset) MediaRef() string {
	return "asset:" + m.UUID.String()
}
