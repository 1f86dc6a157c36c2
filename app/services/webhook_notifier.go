package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/amirphl/campaign-hub/config"
)

// DispatchOutcomeEvent is posted to the webhook sink when a dispatch reaches a terminal outcome
type DispatchOutcomeEvent struct {
	DispatchID      uint      `json:"dispatch_id"`
	DispatchUUID    string    `json:"dispatch_uuid"`
	BatchGroupID    string    `json:"batch_group_id"`
	HubContentID    *uint     `json:"hub_content_id,omitempty"`
	Channel         string    `json:"channel"`
	Status          string    `json:"status"`
	ExternalGroupID *string   `json:"external_group_id,omitempty"`
	FailedCount     int       `json:"failed_count"`
	Error           *string   `json:"error,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// OutcomeNotifier delivers dispatch outcomes to an external sink
type OutcomeNotifier interface {
	NotifyDispatchOutcome(ctx context.Context, event DispatchOutcomeEvent) error
}

// WebhookNotifier posts outcome events as JSON, signed with HMAC-SHA256 when a secret is set
type WebhookNotifier struct {
	cfg    config.WebhookConfig
	client *http.Client
}

func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (n *WebhookNotifier) NotifyDispatchOutcome(ctx context.Context, event DispatchOutcomeEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.Secret != "" {
		mac := hmac.New(sha256.New, []byte(n.cfg.Secret))
		mac.Write(b)
		req.Header.Set("X-Signature-SHA256", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook http status: %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier only logs outcomes; used when no webhook URL is configured
type LogNotifier struct{}

func NewLogNotifier() OutcomeNotifier {
	return &LogNotifier{}
}

func (LogNotifier) NotifyDispatchOutcome(ctx context.Context, event DispatchOutcomeEvent) error {
	log.Printf("dispatch outcome: id=%d status=%s failed=%d", event.DispatchID, event.Status, event.FailedCount)
	return nil
}
