package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/utils"
	"github.com/google/uuid"
)

// TestFixtures creates rows directly through gorm for repository tests
type TestFixtures struct {
	DB *TestDB
}

func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// RandomRecipients returns n distinct-looking phone numbers
func RandomRecipients(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("+98912%07d", rand.Intn(10000000))
	}
	return out
}

// CreateShortLink stores a link with the given code. A nil expiry never expires.
func (tf *TestFixtures) CreateShortLink(code string, expiresAt *time.Time) (*models.ShortLink, error) {
	campaign := "spring-sale"
	link := &models.ShortLink{
		Code:       code,
		TargetURL:  "https://example.com/landing",
		UTMParams:  models.UTMParams{"utm_campaign": campaign},
		CampaignID: &campaign,
		ExpiresAt:  expiresAt,
	}
	if err := tf.DB.DB.Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to create test short link: %w", err)
	}
	return link, nil
}

func (tf *TestFixtures) CreateHubContent(title string) (*models.HubContent, error) {
	hub := &models.HubContent{Title: title}
	if err := tf.DB.DB.Create(hub).Error; err != nil {
		return nil, fmt.Errorf("failed to create test hub content: %w", err)
	}
	return hub, nil
}

// CreateDispatch stores one scheduled SMS dispatch due at scheduledAt
func (tf *TestFixtures) CreateDispatch(hubID *uint, recipients []string, scheduledAt time.Time) (*models.Dispatch, error) {
	at := scheduledAt.UTC()
	d := &models.Dispatch{
		BatchGroupID:     uuid.New(),
		HubContentID:     hubID,
		Channel:          models.ChannelSMS,
		RecipientNumbers: recipients,
		MessageText:      "Spring sale starts today",
		ChannelOptions:   models.ChannelOptions{},
		ScheduledAt:      &at,
		Status:           models.DispatchStatusScheduled,
		CreatedAt:        utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(d).Error; err != nil {
		return nil, fmt.Errorf("failed to create test dispatch: %w", err)
	}
	return d, nil
}
