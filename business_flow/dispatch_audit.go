package businessflow

import (
	"context"
	"encoding/json"
	"log"

	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
)

// DispatchAuditEntry describes one audit row before it is persisted
type DispatchAuditEntry struct {
	DispatchID  uint
	Action      string
	From        models.DispatchStatus
	To          models.DispatchStatus
	Description string
	Metadata    map[string]any
	Err         error
}

// NewDispatchAuditLog builds the audit row for entry. Client metadata may be nil
// for actions performed by background workers.
func NewDispatchAuditLog(ctx context.Context, entry DispatchAuditEntry, metadata *ClientMetadata) *models.DispatchAuditLog {
	row := &models.DispatchAuditLog{
		DispatchID:  entry.DispatchID,
		Action:      entry.Action,
		Description: utils.NilIfEmpty(entry.Description),
		RequestID:   requestIDFrom(ctx),
		Success:     utils.ToPtr(entry.Err == nil),
		CreatedAt:   utils.UTCNow(),
	}
	if entry.From != "" {
		row.FromStatus = utils.ToPtr(entry.From.String())
	}
	if entry.To != "" {
		row.ToStatus = utils.ToPtr(entry.To.String())
	}
	if entry.Err != nil {
		row.ErrorMessage = utils.ToPtr(entry.Err.Error())
	}
	if metadata != nil {
		row.IPAddress = utils.NilIfEmpty(metadata.IPAddress)
		row.UserAgent = utils.NilIfEmpty(metadata.UserAgent)
		if row.RequestID == nil {
			row.RequestID = utils.NilIfEmpty(metadata.RequestID)
		}
	}
	if len(entry.Metadata) > 0 {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			row.Metadata = raw
		}
	}
	return row
}

// SaveDispatchAudit persists an audit row. A failed audit write is logged and does not fail the caller.
func SaveDispatchAudit(ctx context.Context, repo repository.DispatchAuditLogRepository, entry DispatchAuditEntry, metadata *ClientMetadata) {
	if repo == nil {
		return
	}
	if err := repo.Save(ctx, NewDispatchAuditLog(ctx, entry, metadata)); err != nil {
		log.Printf("dispatch %d: failed to write %s audit log: %v", entry.DispatchID, entry.Action, err)
	}
}
