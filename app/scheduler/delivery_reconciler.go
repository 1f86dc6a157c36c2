package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/amirphl/campaign-hub/app/services"
	businessflow "github.com/amirphl/campaign-hub/business_flow"
	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	statusJobBatchLimit = 100
	statusJobTimeout    = 30 * time.Second
)

// DeliveryReconciler executes planned delivery status jobs and merges the
// gateway's reports into the dispatch per-recipient results.
type DeliveryReconciler struct {
	dispatchRepo repository.DispatchRepository
	auditRepo    repository.DispatchAuditLogRepository
	jobRepo      repository.DeliveryStatusJobRepository
	gateway      services.ChannelGateway
	reconciler   businessflow.StatusReconcilerFlow
	notifier     services.OutcomeNotifier
	db           *gorm.DB
	cfg          config.SchedulerConfig

	logger  *log.Logger
	logFile io.Closer
	now     func() time.Time
}

func NewDeliveryReconciler(
	dispatchRepo repository.DispatchRepository,
	auditRepo repository.DispatchAuditLogRepository,
	jobRepo repository.DeliveryStatusJobRepository,
	gateway services.ChannelGateway,
	reconciler businessflow.StatusReconcilerFlow,
	notifier services.OutcomeNotifier,
	db *gorm.DB,
	cfg config.SchedulerConfig,
) *DeliveryReconciler {
	if cfg.ReconcileCron == "" {
		cfg.ReconcileCron = "@every 10m"
	}
	if cfg.StatusJobMaxRetries <= 0 {
		cfg.StatusJobMaxRetries = utils.MaxStatusJobRetries
	}
	r := &DeliveryReconciler{
		dispatchRepo: dispatchRepo,
		auditRepo:    auditRepo,
		jobRepo:      jobRepo,
		gateway:      gateway,
		reconciler:   reconciler,
		notifier:     notifier,
		db:           db,
		cfg:          cfg,
		now:          utils.UTCNow,
	}
	r.logger, r.logFile = newFileLogger(cfg.LogFilePath, "reconciler ", cfg.LogRotation)
	return r
}

// Start registers the status job worker on a cron schedule and returns a stop function
// that waits for a running pass to finish.
func (r *DeliveryReconciler) Start(parent context.Context) (func(), error) {
	ctx, cancel := context.WithCancel(parent)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(r.cfg.ReconcileCron, func() { r.ProcessDue(ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", r.cfg.ReconcileCron, err)
	}
	c.Start()
	go r.ProcessDue(ctx)

	return func() {
		cancel()
		<-c.Stop().Done()
		_ = r.logFile.Close()
	}, nil
}

// ProcessDue runs every due status job once and returns how many succeeded
func (r *DeliveryReconciler) ProcessDue(ctx context.Context) int {
	jobs, err := r.jobRepo.ListDue(ctx, r.now(), r.cfg.StatusJobMaxRetries, statusJobBatchLimit)
	if err != nil {
		r.logger.Printf("reconciler: list status jobs failed: %v", err)
		return 0
	}
	if len(jobs) == 0 {
		return 0
	}

	done := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		jobCtx, cancel := context.WithTimeout(ctx, statusJobTimeout)
		err := r.handleJob(jobCtx, job)
		cancel()
		if err != nil {
			statusJobsProcessed.WithLabelValues("error").Inc()
			r.logger.Printf("reconciler: status job id=%d group=%s failed: %v", job.ID, job.ExternalGroupID, err)
			r.recordJobError(ctx, job, err)
			continue
		}
		statusJobsProcessed.WithLabelValues("ok").Inc()
		done++
	}
	r.logger.Printf("reconciler: processed %d/%d status jobs", done, len(jobs))
	return done
}

func (r *DeliveryReconciler) handleJob(ctx context.Context, job *models.DeliveryStatusJob) error {
	d, err := r.dispatchRepo.ByExternalGroupID(ctx, job.ExternalGroupID)
	if err != nil {
		return err
	}
	if d == nil {
		if d, err = r.dispatchRepo.ByID(ctx, job.DispatchID); err != nil {
			return err
		}
	}
	if d == nil {
		return fmt.Errorf("%w: group %s", businessflow.ErrDispatchNotFound, job.ExternalGroupID)
	}
	if d.Status != models.DispatchStatusSent && d.Status != models.DispatchStatusPartiallyFailed {
		return r.finishJob(ctx, job)
	}

	reports, err := r.gateway.FetchDeliveryStatus(ctx, job.ExternalGroupID, []string(d.RecipientNumbers))
	if err != nil {
		return err
	}

	merged := MergeDeliveryReports(d.PerRecipientResult, reports, r.now())
	next := d.Status
	if merged.FailedCount() > 0 {
		next = models.DispatchStatusPartiallyFailed
	}

	err = r.inTx(ctx, func(txCtx context.Context) error {
		ok, err := r.dispatchRepo.TransitionStatus(txCtx, d.ID, d.Status, next, map[string]any{
			"per_recipient_result": merged,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: dispatch %d changed while reconciling", businessflow.ErrInvalidDispatchTransition, d.ID)
		}
		entry := businessflow.DispatchAuditEntry{
			DispatchID: d.ID,
			Action:     models.DispatchActionReconciled,
			From:       d.Status,
			To:         next,
			Metadata: map[string]any{
				"job_id":          job.ID,
				"correlation_id":  job.CorrelationID,
				"reports":         len(reports),
				"failed":          merged.FailedCount(),
				"previous_failed": d.PerRecipientResult.FailedCount(),
			},
		}
		if err := r.auditRepo.Save(txCtx, businessflow.NewDispatchAuditLog(txCtx, entry, nil)); err != nil {
			return err
		}
		now := r.now()
		job.ExecutedAt = &now
		job.Error = nil
		job.UpdatedAt = now
		return r.jobRepo.Update(txCtx, job)
	})
	if err != nil {
		return err
	}

	changed := next != d.Status
	d.Status = next
	d.PerRecipientResult = merged
	if changed {
		r.logger.Printf("reconciler: dispatch id=%d moved to %s after delivery reports", d.ID, next)
		dispatchOutcomes.WithLabelValues(string(d.Channel), string(d.Status)).Inc()
		syncHubAndNotify(ctx, r.logger, r.dispatchRepo, r.auditRepo, r.reconciler, r.notifier, d)
	}
	return nil
}

// finishJob marks a job done without a gateway read; the dispatch left the sent states.
func (r *DeliveryReconciler) finishJob(ctx context.Context, job *models.DeliveryStatusJob) error {
	now := r.now()
	job.ExecutedAt = &now
	job.UpdatedAt = now
	return r.jobRepo.Update(ctx, job)
}

// recordJobError bumps the retry counter; the job is picked up again until it runs out of retries
func (r *DeliveryReconciler) recordJobError(ctx context.Context, job *models.DeliveryStatusJob, cause error) {
	now := r.now()
	msg := cause.Error()
	job.RetryCount++
	job.Error = &msg
	job.UpdatedAt = now
	if err := r.jobRepo.Update(ctx, job); err != nil {
		r.logger.Printf("reconciler: failed to record error on status job id=%d: %v", job.ID, err)
	}
}

func (r *DeliveryReconciler) inTx(ctx context.Context, fn func(context.Context) error) error {
	if r.db == nil {
		return fn(ctx)
	}
	return repository.WithTransaction(ctx, r.db, fn)
}

// MergeDeliveryReports overlays delivery reports on the current per-recipient results.
// Reports for unknown recipients are ignored and a pending report never
// downgrades a recipient that already has an outcome.
func MergeDeliveryReports(current models.RecipientResultMap, reports []services.DeliveryReport, at time.Time) models.RecipientResultMap {
	out := make(models.RecipientResultMap, len(current))
	for k, v := range current {
		out[k] = v
	}
	for _, rep := range reports {
		prev, ok := out[rep.Recipient]
		if !ok {
			continue
		}
		if rep.State == "" || rep.State == models.RecipientStatePending {
			continue
		}
		if prev.Status == rep.State {
			continue
		}
		out[rep.Recipient] = models.RecipientOutcome{
			Status:      rep.State,
			ErrorCode:   rep.ErrorCode,
			Description: rep.Description,
			UpdatedAt:   at,
		}
	}
	return out
}
