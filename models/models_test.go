package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversionRate(t *testing.T) {
	t.Run("zero views", func(t *testing.T) {
		m := &CampaignMetric{Views: 0, FormSubmissions: 5}
		assert.Equal(t, 0.0, m.ConversionRate())
	})

	t.Run("nil metric", func(t *testing.T) {
		var m *CampaignMetric
		assert.Equal(t, 0.0, m.ConversionRate())
	})

	t.Run("ratio", func(t *testing.T) {
		m := &CampaignMetric{Views: 200, FormSubmissions: 50}
		assert.InDelta(t, 0.25, m.ConversionRate(), 1e-9)
	})
}

func TestIsMetricColumn(t *testing.T) {
	assert.True(t, IsMetricColumn(MetricColumnViews))
	assert.True(t, IsMetricColumn(MetricColumnFormSubmissions))
	assert.False(t, IsMetricColumn("id"))
	assert.False(t, IsMetricColumn("views; DROP TABLE campaign_metrics"))
}

func TestShortLinkIsExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	never := &ShortLink{}
	assert.False(t, never.IsExpiredAt(now))

	past := now.Add(-time.Minute)
	assert.True(t, (&ShortLink{ExpiresAt: &past}).IsExpiredAt(now))

	// the expiry instant itself counts as expired
	assert.True(t, (&ShortLink{ExpiresAt: &now}).IsExpiredAt(now))

	future := now.Add(time.Hour)
	assert.False(t, (&ShortLink{ExpiresAt: &future}).IsExpiredAt(now))
}

func TestDispatchStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to DispatchStatus
		allowed  bool
	}{
		{DispatchStatusDraft, DispatchStatusScheduled, true},
		{DispatchStatusDraft, DispatchStatusSending, false},
		{DispatchStatusScheduled, DispatchStatusSending, true},
		{DispatchStatusScheduled, DispatchStatusSent, false},
		{DispatchStatusSending, DispatchStatusSent, true},
		{DispatchStatusSending, DispatchStatusPartiallyFailed, true},
		{DispatchStatusSending, DispatchStatusFailed, true},
		{DispatchStatusSending, DispatchStatusDeleted, false},
		{DispatchStatusSending, DispatchStatusScheduled, false},
		{DispatchStatusFailed, DispatchStatusScheduled, true},
		{DispatchStatusFailed, DispatchStatusSending, false},
		{DispatchStatusSent, DispatchStatusPartiallyFailed, true},
		{DispatchStatusSent, DispatchStatusDeleted, true},
		{DispatchStatusDeleted, DispatchStatusDeleted, false},
		{DispatchStatusDeleted, DispatchStatusScheduled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestDispatchStatusValue(t *testing.T) {
	_, err := DispatchStatus("queued").Value()
	assert.Error(t, err)

	v, err := DispatchStatusPartiallyFailed.Value()
	require.NoError(t, err)
	assert.Equal(t, "partially_failed", v)
}

func TestRecipientResultMapFailedCount(t *testing.T) {
	m := RecipientResultMap{
		"+821000000001": {Status: RecipientStateDelivered},
		"+821000000002": {Status: RecipientStateUndelivered},
		"+821000000003": {Status: RecipientStateFailed},
		"+821000000004": {Status: RecipientStatePending},
	}
	assert.Equal(t, 2, m.FailedCount())
	assert.Equal(t, 0, RecipientResultMap{}.FailedCount())
}

func TestNewChannelPayload(t *testing.T) {
	media := "gw:abc123"
	code := "WELCOME_01"

	t.Run("sms", func(t *testing.T) {
		p, err := NewChannelPayload(ChannelSMS, "hello", &media, ChannelOptions{})
		require.NoError(t, err)
		assert.Equal(t, ChannelSMS, p.Channel())
		assert.Equal(t, "hello", p.Text())
		assert.Nil(t, p.Media(), "sms never carries media")
	})

	t.Run("sms requires body", func(t *testing.T) {
		_, err := NewChannelPayload(ChannelSMS, "   ", nil, ChannelOptions{})
		assert.Error(t, err)
	})

	t.Run("mms requires media", func(t *testing.T) {
		_, err := NewChannelPayload(ChannelMMS, "hello", nil, ChannelOptions{})
		assert.Error(t, err)

		p, err := NewChannelPayload(ChannelMMS, "hello", &media, ChannelOptions{})
		require.NoError(t, err)
		require.NotNil(t, p.Media())
		assert.Equal(t, media, *p.Media())
	})

	t.Run("kakao requires template", func(t *testing.T) {
		_, err := NewChannelPayload(ChannelKakao, "hello", nil, ChannelOptions{})
		assert.Error(t, err)

		p, err := NewChannelPayload(ChannelKakao, "hello", nil, ChannelOptions{
			TemplateCode: &code,
			Buttons:      []KakaoButton{{Name: "Open", URL: "https://example.com"}},
		})
		require.NoError(t, err)
		kp, ok := p.(KakaoPayload)
		require.True(t, ok)
		assert.Equal(t, code, kp.TemplateCode)
		assert.Len(t, kp.Buttons, 1)
	})

	t.Run("kakao rejects incomplete button", func(t *testing.T) {
		_, err := NewChannelPayload(ChannelKakao, "hello", nil, ChannelOptions{
			TemplateCode: &code,
			Buttons:      []KakaoButton{{Name: "Open"}},
		})
		assert.Error(t, err)
	})

	t.Run("unknown channel", func(t *testing.T) {
		_, err := NewChannelPayload(ChannelType("fax"), "hello", nil, ChannelOptions{})
		assert.Error(t, err)
	})
}
