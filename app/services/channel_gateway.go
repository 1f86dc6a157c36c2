// Package services provides external service integrations and technical concerns like gateways, caches and notifications
package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/amirphl/campaign-hub/models"
	"github.com/google/uuid"
)

// SendRequest is one gateway call for a single dispatch chunk
type SendRequest struct {
	TrackingID  string
	Channel     models.ChannelType
	Recipients  []string
	Payload     models.ChannelPayload
	MediaHandle *string
}

// RecipientSendResult is the synchronous acceptance result of one recipient
type RecipientSendResult struct {
	Recipient   string
	Accepted    bool
	ServerID    *string
	ErrorCode   *string
	Description *string
}

// SendResult is what the gateway returns for an accepted batch
type SendResult struct {
	ExternalGroupID string
	Recipients      []RecipientSendResult
}

// DeliveryReport is the asynchronous delivery state of one recipient
type DeliveryReport struct {
	Recipient   string
	State       models.RecipientState
	ErrorCode   *string
	Description *string
}

// ChannelGateway sends dispatches to an external SMS/MMS/Kakao provider.
// Delivery reports are looked up by the external group id returned from Send
// plus the recipient list in send order.
type ChannelGateway interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
	FetchDeliveryStatus(ctx context.Context, externalGroupID string, recipients []string) ([]DeliveryReport, error)
	UploadMedia(ctx context.Context, channel models.ChannelType, filename, contentType string, content []byte) (string, error)
}

// MockChannelGateway accepts everything and records what it was asked to do.
// Tests replace SendFunc, StatusFunc or UploadFunc to script failures.
type MockChannelGateway struct {
	mu         sync.Mutex
	sends      []SendRequest
	uploads    int
	SendFunc   func(ctx context.Context, req SendRequest) (*SendResult, error)
	StatusFunc func(ctx context.Context, externalGroupID string, recipients []string) ([]DeliveryReport, error)
	UploadFunc func(ctx context.Context, channel models.ChannelType, filename string) (string, error)
}

func NewMockChannelGateway() *MockChannelGateway {
	return &MockChannelGateway{}
}

func (g *MockChannelGateway) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	g.mu.Lock()
	g.sends = append(g.sends, req)
	fn := g.SendFunc
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	log.Printf("mock gateway: %s batch of %d recipients: %s", req.Channel, len(req.Recipients), req.Payload.Text())
	out := &SendResult{ExternalGroupID: "mock-" + uuid.NewString()}
	for _, r := range req.Recipients {
		out.Recipients = append(out.Recipients, RecipientSendResult{Recipient: r, Accepted: true})
	}
	return out, nil
}

func (g *MockChannelGateway) FetchDeliveryStatus(ctx context.Context, externalGroupID string, recipients []string) ([]DeliveryReport, error) {
	g.mu.Lock()
	fn := g.StatusFunc
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, externalGroupID, recipients)
	}
	return nil, nil
}

func (g *MockChannelGateway) UploadMedia(ctx context.Context, channel models.ChannelType, filename, contentType string, content []byte) (string, error) {
	g.mu.Lock()
	g.uploads++
	fn := g.UploadFunc
	g.mu.Unlock()
	if fn != nil {
		return fn(ctx, channel, filename)
	}
	if len(content) == 0 {
		return "", fmt.Errorf("empty media content")
	}
	return fmt.Sprintf("gw-%s-%s", strings.ToLower(string(channel)), uuid.NewString()[:8]), nil
}

// Sends returns a copy of every request seen so far
func (g *MockChannelGateway) Sends() []SendRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SendRequest(nil), g.sends...)
}

// Uploads returns how many times UploadMedia was called
func (g *MockChannelGateway) Uploads() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uploads
}
