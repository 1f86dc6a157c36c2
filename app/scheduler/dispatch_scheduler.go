// Package scheduler runs the background workers that send due dispatches and reconcile delivery reports
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/app/services"
	businessflow "github.com/amirphl/campaign-hub/business_flow"
	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// dispatchOutcome is what happened to one due dispatch in a poll cycle
type dispatchOutcome int

const (
	outcomeConflict dispatchOutcome = iota
	outcomeSent
	outcomePartiallyFailed
	outcomeFailed
	outcomeReleased
	outcomeError
)

// outcomeWriteTimeout bounds the writes that record what happened to a claimed
// dispatch. They run detached from the poll context.
const outcomeWriteTimeout = 15 * time.Second

// DispatchScheduler periodically claims due dispatches and sends them through the channel gateway
type DispatchScheduler struct {
	dispatchRepo repository.DispatchRepository
	auditRepo    repository.DispatchAuditLogRepository
	jobRepo      repository.DeliveryStatusJobRepository
	gateway      services.ChannelGateway
	media        services.MediaResolver
	reconciler   businessflow.StatusReconcilerFlow
	notifier     services.OutcomeNotifier
	db           *gorm.DB
	cfg          config.SchedulerConfig

	logger  *log.Logger
	logFile io.Closer
	now     func() time.Time
}

func NewDispatchScheduler(
	dispatchRepo repository.DispatchRepository,
	auditRepo repository.DispatchAuditLogRepository,
	jobRepo repository.DeliveryStatusJobRepository,
	gateway services.ChannelGateway,
	media services.MediaResolver,
	reconciler businessflow.StatusReconcilerFlow,
	notifier services.OutcomeNotifier,
	db *gorm.DB,
	cfg config.SchedulerConfig,
) *DispatchScheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = utils.DefaultGatewayTimeout
	}
	if len(cfg.StatusCheckOffsets) == 0 {
		cfg.StatusCheckOffsets = []time.Duration{5 * time.Minute, time.Hour, 3 * time.Hour}
	}

	s := &DispatchScheduler{
		dispatchRepo: dispatchRepo,
		auditRepo:    auditRepo,
		jobRepo:      jobRepo,
		gateway:      gateway,
		media:        media,
		reconciler:   reconciler,
		notifier:     notifier,
		db:           db,
		cfg:          cfg,
		now:          utils.UTCNow,
	}
	s.logger, s.logFile = newFileLogger(cfg.LogFilePath, "scheduler ", cfg.LogRotation)
	return s
}

// Start launches the poll loop in a background goroutine and returns a stop function
func (s *DispatchScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
		_ = s.logFile.Close()
	}
}

// RunOnce executes a single poll cycle. Cycles may overlap; the status
// compare-and-swap guarantees each dispatch is claimed at most once.
func (s *DispatchScheduler) RunOnce(ctx context.Context) *dto.RunSchedulerResponse {
	summary := &dto.RunSchedulerResponse{}

	due, err := s.dispatchRepo.ListDue(ctx, s.now(), s.cfg.BatchLimit)
	if err != nil {
		s.logger.Printf("scheduler: list due dispatches failed: %v", err)
		return summary
	}
	summary.Due = len(due)
	if len(due) == 0 {
		return summary
	}
	s.logger.Printf("scheduler: %d dispatches due", len(due))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, d := range due {
		g.Go(func() error {
			outcome := s.processDispatch(gctx, d)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeConflict:
				summary.Conflicts++
			case outcomeSent:
				summary.Claimed++
				summary.Sent++
			case outcomePartiallyFailed:
				summary.Claimed++
				summary.PartiallyFailed++
			case outcomeFailed:
				summary.Claimed++
				summary.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Printf("scheduler: cycle done due=%d claimed=%d conflicts=%d sent=%d partially_failed=%d failed=%d",
		summary.Due, summary.Claimed, summary.Conflicts, summary.Sent, summary.PartiallyFailed, summary.Failed)
	return summary
}

func (s *DispatchScheduler) processDispatch(ctx context.Context, due *models.Dispatch) dispatchOutcome {
	d, err := s.claim(ctx, due)
	if err != nil {
		if businessflow.IsClaimConflict(err) {
			dispatchClaims.WithLabelValues("conflict").Inc()
			s.logger.Printf("scheduler: dispatch id=%d already claimed or no longer due, skipping", due.ID)
			return outcomeConflict
		}
		dispatchClaims.WithLabelValues("error").Inc()
		s.logger.Printf("scheduler: claim dispatch id=%d failed: %v", due.ID, err)
		return outcomeError
	}
	dispatchClaims.WithLabelValues("claimed").Inc()

	// From here the row is ours and must leave sending even if ctx ends.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()

	businessflow.SaveDispatchAudit(wctx, s.auditRepo, businessflow.DispatchAuditEntry{
		DispatchID: d.ID,
		Action:     models.DispatchActionClaimed,
		From:       models.DispatchStatusScheduled,
		To:         models.DispatchStatusSending,
	}, nil)

	payload, err := d.Payload()
	if err != nil {
		return s.fail(wctx, d, fmt.Errorf("%w: %v", businessflow.ErrPayloadInvalid, err))
	}

	var handle *string
	if ref := payload.Media(); ref != nil {
		h, err := s.resolveMedia(ctx, d, *ref)
		if err != nil {
			if ctx.Err() != nil {
				return s.release(wctx, d, ctx.Err())
			}
			return s.fail(wctx, d, fmt.Errorf("%w: %v", businessflow.ErrMediaResolveFailed, err))
		}
		handle = &h
	}

	if ctx.Err() != nil {
		return s.release(wctx, d, ctx.Err())
	}

	trackingID := uuid.NewString()
	sendCtx, cancelSend := context.WithTimeout(ctx, s.cfg.SendTimeout)
	start := time.Now()
	result, err := s.gateway.Send(sendCtx, services.SendRequest{
		TrackingID:  trackingID,
		Channel:     d.Channel,
		Recipients:  []string(d.RecipientNumbers),
		Payload:     payload,
		MediaHandle: handle,
	})
	cancelSend()
	gatewaySendDuration.WithLabelValues(string(d.Channel)).Observe(time.Since(start).Seconds())
	if err != nil {
		return s.fail(wctx, d, fmt.Errorf("%w: %v", businessflow.ErrGatewaySendFailure, err))
	}

	return s.complete(wctx, d, result)
}

// claim moves the dispatch from scheduled to sending before any network call and
// returns the row as claimed. A dispatch that was rescheduled, deleted or claimed
// since it was listed yields ErrClaimConflict.
func (s *DispatchScheduler) claim(ctx context.Context, due *models.Dispatch) (*models.Dispatch, error) {
	var claimed *models.Dispatch
	err := businessflow.WithStorageRetry(ctx, "claim dispatch", func(ctx context.Context) error {
		var err error
		claimed, err = s.dispatchRepo.ClaimDue(ctx, due.ID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		return nil, fmt.Errorf("dispatch %d: %w", due.ID, businessflow.ErrClaimConflict)
	}
	return claimed, nil
}

// release hands a claim back to the poller when the cycle ended before the
// gateway was called.
func (s *DispatchScheduler) release(ctx context.Context, d *models.Dispatch, cause error) dispatchOutcome {
	err := s.inTx(ctx, func(txCtx context.Context) error {
		ok, err := s.dispatchRepo.TransitionStatus(txCtx, d.ID, models.DispatchStatusSending, models.DispatchStatusScheduled, map[string]any{
			"claimed_at": nil,
		})
		if err != nil {
			return err
		}
		if !ok {
			return businessflow.ErrInvalidDispatchTransition
		}
		entry := businessflow.DispatchAuditEntry{
			DispatchID: d.ID,
			Action:     models.DispatchActionReleased,
			From:       models.DispatchStatusSending,
			To:         models.DispatchStatusScheduled,
			Err:        cause,
		}
		return s.auditRepo.Save(txCtx, businessflow.NewDispatchAuditLog(txCtx, entry, nil))
	})
	if err != nil {
		s.logger.Printf("scheduler: failed to release dispatch id=%d: %v", d.ID, err)
		return outcomeError
	}
	dispatchClaims.WithLabelValues("released").Inc()
	s.logger.Printf("scheduler: dispatch id=%d released before send: %v", d.ID, cause)
	d.Status = models.DispatchStatusScheduled
	d.ClaimedAt = nil
	return outcomeReleased
}

// resolveMedia returns the gateway handle for the dispatch media, uploading it on first use
func (s *DispatchScheduler) resolveMedia(ctx context.Context, d *models.Dispatch, ref string) (string, error) {
	if d.MediaHandle != nil && *d.MediaHandle != "" {
		return *d.MediaHandle, nil
	}
	if s.media == nil {
		return "", errors.New("media resolver not configured")
	}
	handle, err := s.media.Resolve(ctx, d.Channel, ref)
	if err != nil {
		return "", err
	}
	if err := s.dispatchRepo.SetMediaHandle(ctx, d.ID, handle); err != nil {
		s.logger.Printf("scheduler: failed to persist media handle for dispatch id=%d: %v", d.ID, err)
	}
	d.MediaHandle = &handle
	return handle, nil
}

// fail stores the error and moves the dispatch to failed. The send is not retried.
func (s *DispatchScheduler) fail(ctx context.Context, d *models.Dispatch, cause error) dispatchOutcome {
	s.logger.Printf("scheduler: dispatch id=%d failed: %v", d.ID, cause)
	msg := cause.Error()

	err := s.inTx(ctx, func(txCtx context.Context) error {
		ok, err := s.dispatchRepo.TransitionStatus(txCtx, d.ID, models.DispatchStatusSending, models.DispatchStatusFailed, map[string]any{
			"last_error": msg,
		})
		if err != nil {
			return err
		}
		if !ok {
			return businessflow.ErrInvalidDispatchTransition
		}
		entry := businessflow.DispatchAuditEntry{
			DispatchID: d.ID,
			Action:     models.DispatchActionFailed,
			From:       models.DispatchStatusSending,
			To:         models.DispatchStatusFailed,
			Err:        cause,
		}
		return s.auditRepo.Save(txCtx, businessflow.NewDispatchAuditLog(txCtx, entry, nil))
	})
	if err != nil {
		s.logger.Printf("scheduler: failed to record failure of dispatch id=%d: %v", d.ID, err)
		return outcomeError
	}

	d.Status = models.DispatchStatusFailed
	d.LastError = &msg
	dispatchOutcomes.WithLabelValues(string(d.Channel), string(d.Status)).Inc()
	s.afterOutcome(ctx, d)
	return outcomeFailed
}

// complete records an accepted send, flagging the dispatch partially_failed when the
// gateway rejected some recipients inline, and plans the delivery status reads.
func (s *DispatchScheduler) complete(ctx context.Context, d *models.Dispatch, result *services.SendResult) dispatchOutcome {
	now := s.now()
	results := RecipientResultsFromSend(d.RecipientNumbers, result, now)
	next := models.DispatchStatusSent
	action := models.DispatchActionSent
	var cause error
	if failed := results.FailedCount(); failed > 0 {
		next = models.DispatchStatusPartiallyFailed
		action = models.DispatchActionPartiallyFailed
		cause = fmt.Errorf("%w: %d of %d recipients rejected", businessflow.ErrPartialDeliveryFailure, failed, len(d.RecipientNumbers))
	}
	groupID := result.ExternalGroupID

	err := s.inTx(ctx, func(txCtx context.Context) error {
		ok, err := s.dispatchRepo.TransitionStatus(txCtx, d.ID, models.DispatchStatusSending, next, map[string]any{
			"external_group_id":    groupID,
			"per_recipient_result": results,
			"sent_at":              now,
			"last_error":           nil,
		})
		if err != nil {
			return err
		}
		if !ok {
			return businessflow.ErrInvalidDispatchTransition
		}
		entry := businessflow.DispatchAuditEntry{
			DispatchID: d.ID,
			Action:     action,
			From:       models.DispatchStatusSending,
			To:         next,
			Metadata: map[string]any{
				"external_group_id": groupID,
				"recipients":        len(d.RecipientNumbers),
				"failed":            results.FailedCount(),
			},
		}
		if cause != nil {
			entry.Description = cause.Error()
		}
		if err := s.auditRepo.Save(txCtx, businessflow.NewDispatchAuditLog(txCtx, entry, nil)); err != nil {
			return err
		}
		return s.planStatusJobs(txCtx, d.ID, groupID, now)
	})
	if err != nil {
		s.logger.Printf("scheduler: failed to record send of dispatch id=%d group=%s: %v", d.ID, groupID, err)
		return outcomeError
	}

	d.Status = next
	d.ExternalGroupID = &groupID
	d.PerRecipientResult = results
	d.SentAt = &now
	dispatchOutcomes.WithLabelValues(string(d.Channel), string(d.Status)).Inc()
	s.logger.Printf("scheduler: dispatch id=%d %s group=%s recipients=%d", d.ID, next, groupID, len(d.RecipientNumbers))
	s.afterOutcome(ctx, d)

	if next == models.DispatchStatusPartiallyFailed {
		return outcomePartiallyFailed
	}
	return outcomeSent
}

func (s *DispatchScheduler) planStatusJobs(ctx context.Context, dispatchID uint, groupID string, now time.Time) error {
	if s.jobRepo == nil || groupID == "" {
		return nil
	}
	corrID := uuid.NewString()
	jobs := make([]*models.DeliveryStatusJob, 0, len(s.cfg.StatusCheckOffsets))
	for _, off := range s.cfg.StatusCheckOffsets {
		jobs = append(jobs, &models.DeliveryStatusJob{
			CorrelationID:   corrID,
			DispatchID:      dispatchID,
			ExternalGroupID: groupID,
			ScheduledAt:     now.Add(off),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	return s.jobRepo.SaveBatch(ctx, jobs)
}

// afterOutcome syncs the hub channel map and notifies the webhook sink.
// Neither step can undo the committed transition.
func (s *DispatchScheduler) afterOutcome(ctx context.Context, d *models.Dispatch) {
	syncHubAndNotify(ctx, s.logger, s.dispatchRepo, s.auditRepo, s.reconciler, s.notifier, d)
}

func (s *DispatchScheduler) inTx(ctx context.Context, fn func(context.Context) error) error {
	if s.db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, s.db, fn)
}

// RecipientResultsFromSend maps the synchronous gateway response onto every recipient of the
// dispatch. Recipients the gateway did not mention are treated as accepted.
func RecipientResultsFromSend(recipients []string, result *services.SendResult, at time.Time) models.RecipientResultMap {
	out := make(models.RecipientResultMap, len(recipients))
	for _, r := range recipients {
		out[r] = models.RecipientOutcome{Status: models.RecipientStateAccepted, UpdatedAt: at}
	}
	if result == nil {
		return out
	}
	for _, r := range result.Recipients {
		if _, ok := out[r.Recipient]; !ok {
			continue
		}
		state := models.RecipientStateAccepted
		if !r.Accepted {
			state = models.RecipientStateFailed
		}
		out[r.Recipient] = models.RecipientOutcome{
			Status:      state,
			ErrorCode:   r.ErrorCode,
			Description: r.Description,
			UpdatedAt:   at,
		}
	}
	return out
}

func syncHubAndNotify(
	ctx context.Context,
	logger *log.Logger,
	dispatchRepo repository.DispatchRepository,
	auditRepo repository.DispatchAuditLogRepository,
	reconciler businessflow.StatusReconcilerFlow,
	notifier services.OutcomeNotifier,
	d *models.Dispatch,
) {
	if d.HubContentID != nil && reconciler != nil {
		err := reconciler.SyncChannelStatus(ctx, *d.HubContentID, d.Channel, batchChannelOutcome(ctx, logger, dispatchRepo, d))
		if err != nil {
			logger.Printf("dispatch id=%d: hub %d channel sync failed: %v", d.ID, *d.HubContentID, err)
		}
	}

	if notifier == nil {
		return
	}
	event := services.DispatchOutcomeEvent{
		DispatchID:      d.ID,
		DispatchUUID:    d.UUID.String(),
		BatchGroupID:    d.BatchGroupID.String(),
		HubContentID:    d.HubContentID,
		Channel:         string(d.Channel),
		Status:          string(d.Status),
		ExternalGroupID: d.ExternalGroupID,
		FailedCount:     d.PerRecipientResult.FailedCount(),
		Error:           d.LastError,
		OccurredAt:      utils.UTCNow(),
	}
	if err := notifier.NotifyDispatchOutcome(ctx, event); err != nil {
		logger.Printf("dispatch id=%d: outcome notification failed: %v", d.ID, err)
		businessflow.SaveDispatchAudit(ctx, auditRepo, businessflow.DispatchAuditEntry{
			DispatchID: d.ID,
			Action:     models.DispatchActionNotifyFailed,
			To:         d.Status,
			Err:        err,
		}, nil)
	}
}

// batchChannelOutcome folds the finished chunks of d's batch on d's channel into
// the outcome shown on the hub. Unfinished chunks are ignored and a mix of sent
// and failed chunks reads as partially_failed.
func batchChannelOutcome(ctx context.Context, logger *log.Logger, dispatchRepo repository.DispatchRepository, d *models.Dispatch) businessflow.DispatchOutcome {
	out := businessflow.DispatchOutcome{Status: d.Status, ExternalID: d.ExternalGroupID}
	if dispatchRepo == nil || d.BatchGroupID == uuid.Nil {
		return out
	}
	channel := d.Channel
	chunks, err := dispatchRepo.ByFilter(ctx, models.DispatchFilter{
		BatchGroupID: &d.BatchGroupID,
		HubContentID: d.HubContentID,
		Channel:      &channel,
	}, "", 0, 0)
	if err != nil {
		logger.Printf("dispatch id=%d: batch lookup failed, using own outcome: %v", d.ID, err)
		return out
	}

	statuses := []models.DispatchStatus{d.Status}
	for _, c := range chunks {
		if c.ID != d.ID {
			statuses = append(statuses, c.Status)
		}
	}
	out.Status = mergeChunkStatuses(statuses, d.Status)
	return out
}

func mergeChunkStatuses(statuses []models.DispatchStatus, fallback models.DispatchStatus) models.DispatchStatus {
	var sent, partial, failed int
	for _, st := range statuses {
		switch st {
		case models.DispatchStatusSent:
			sent++
		case models.DispatchStatusPartiallyFailed:
			partial++
		case models.DispatchStatusFailed:
			failed++
		}
	}
	switch {
	case partial > 0 || (sent > 0 && failed > 0):
		return models.DispatchStatusPartiallyFailed
	case failed > 0:
		return models.DispatchStatusFailed
	case sent > 0:
		return models.DispatchStatusSent
	default:
		return fallback
	}
}
