package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/campaign-hub/config"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Engagement event types
const (
	EngagementEventView           = "view"
	EngagementEventPhoneClick     = "phone_click"
	EngagementEventFormSubmission = "form_submission"
	EngagementEventLinkClick      = "link_click"
)

// EngagementEvent is the message published for every recorded interaction
type EngagementEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	CampaignID string    `json:"campaign_id,omitempty"`
	LinkCode   string    `json:"link_code,omitempty"`
	PageURL    string    `json:"page_url,omitempty"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EngagementPublisher fans engagement events out to downstream consumers
type EngagementPublisher interface {
	Publish(event EngagementEvent) error
}

// NATSEngagementPublisher publishes engagement events to a JetStream subject
type NATSEngagementPublisher struct {
	js      nats.JetStreamContext
	subject string
}

func NewNATSEngagementPublisher(js nats.JetStreamContext, subject string) *NATSEngagementPublisher {
	return &NATSEngagementPublisher{js: js, subject: subject}
}

func (p *NATSEngagementPublisher) Publish(event EngagementEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(p.subject, data)
	return err
}

// ConnectNATS opens a NATS connection and makes sure the engagement stream exists
func ConnectNATS(cfg config.NATSConfig) (*nats.Conn, nats.JetStreamContext, error) {
	conn, err := nats.Connect(cfg.URL, nats.Timeout(5*time.Second), nats.Name("campaign-hub"))
	if err != nil {
		return nil, nil, fmt.Errorf("nats: connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("nats: init jetstream: %w", err)
	}

	if cfg.Stream != "" {
		if _, err := js.StreamInfo(cfg.Stream); err != nil {
			_, err = js.AddStream(&nats.StreamConfig{
				Name:     cfg.Stream,
				Subjects: []string{strings.TrimSuffix(cfg.Subject, ".events") + ".>"},
			})
			if err != nil {
				conn.Close()
				return nil, nil, fmt.Errorf("nats: add stream: %w", err)
			}
		}
	}

	return conn, js, nil
}
