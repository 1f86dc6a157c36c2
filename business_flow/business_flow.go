// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
	"gorm.io/gorm"
)

// storageRetryAttempts bounds retries of atomic counter and CAS writes
const storageRetryAttempts = 3

// ClientMetadata describes the caller of a flow operation. It feeds audit
// rows and visitor keys.
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Referer   string `json:"referer,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{IPAddress: ipAddress, UserAgent: userAgent}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// requestIDFrom extracts the request id placed in the context by the handlers
func requestIDFrom(ctx context.Context) *string {
	if v, ok := ctx.Value(utils.RequestIDKey).(string); ok && v != "" {
		return &v
	}
	return nil
}

// WithStorageRetry runs fn up to storageRetryAttempts times with a short linear backoff.
// fn must own its transaction: a failed statement aborts the transaction it ran in.
// Context cancellation stops the loop immediately.
func WithStorageRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= storageRetryAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || IsRecordNotFound(err) {
			return err
		}
		log.Printf("%s failed (attempt %d/%d): %v", op, attempt, storageRetryAttempts, err)
		if attempt < storageRetryAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
			}
		}
	}
	return err
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// ToShortLinkDTO converts a short link model to its response shape
func ToShortLinkDTO(link *models.ShortLink, baseURL string) dto.ShortLinkResponse {
	return dto.ShortLinkResponse{
		ID:         link.ID,
		Code:       link.Code,
		ShortURL:   baseURL + "/s/" + link.Code,
		TargetURL:  link.TargetURL,
		UTMParams:  link.UTMParams,
		CampaignID: link.CampaignID,
		ExpiresAt:  formatTimePtr(link.ExpiresAt),
		ClickCount: link.ClickCount,
		CreatedAt:  link.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ToHubContentDTO converts a hub content model to its response shape
func ToHubContentDTO(hub *models.HubContent) dto.HubContentResponse {
	statuses := make(map[string]dto.ChannelStatusDTO, len(hub.ChannelStatus))
	for channel, entry := range hub.ChannelStatus {
		statuses[channel] = dto.ChannelStatusDTO{
			Status:     string(entry.Status),
			ExternalID: entry.ExternalID,
			CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:  entry.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	return dto.HubContentResponse{
		ID:            hub.ID,
		UUID:          hub.UUID.String(),
		Title:         hub.Title,
		ChannelStatus: statuses,
		BlogPostID:    hub.BlogPostID,
		CreatedAt:     hub.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     hub.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ToDispatchDTO converts a dispatch model to its response shape.
// Recipients and per-recipient results are included only when withRecipients is set.
func ToDispatchDTO(d *models.Dispatch, withRecipients bool) dto.DispatchResponse {
	out := dto.DispatchResponse{
		ID:              d.ID,
		UUID:            d.UUID.String(),
		BatchGroupID:    d.BatchGroupID.String(),
		HubContentID:    d.HubContentID,
		Channel:         string(d.Channel),
		ChunkIndex:      d.ChunkIndex,
		RecipientCount:  len(d.RecipientNumbers),
		MessageText:     d.MessageText,
		MediaRef:        d.MediaRef,
		MediaHandle:     d.MediaHandle,
		ScheduledAt:     formatTimePtr(d.ScheduledAt),
		Status:          string(d.Status),
		ExternalGroupID: d.ExternalGroupID,
		FailedCount:     d.PerRecipientResult.FailedCount(),
		LastError:       d.LastError,
		SentAt:          formatTimePtr(d.SentAt),
		DeletedAt:       formatTimePtr(d.DeletedAt),
		CreatedAt:       d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       d.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if withRecipients {
		out.Recipients = append([]string(nil), d.RecipientNumbers...)
		out.PerRecipientResult = make(map[string]dto.RecipientResultDTO, len(d.PerRecipientResult))
		for number, outcome := range d.PerRecipientResult {
			out.PerRecipientResult[number] = dto.RecipientResultDTO{
				Status:      string(outcome.Status),
				ErrorCode:   outcome.ErrorCode,
				Description: outcome.Description,
				UpdatedAt:   outcome.UpdatedAt.UTC().Format(time.RFC3339),
			}
		}
	}
	return out
}

// runInTx runs fn inside a database transaction. Without a database handle
// (in-memory repositories) fn runs directly.
func runInTx(ctx context.Context, db *gorm.DB, fn func(context.Context) error) error {
	if db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, db, fn)
}
