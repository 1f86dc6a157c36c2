package businessflow

import (
	"context"
	"log"
	"strings"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/app/services"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
	"gorm.io/gorm"
)

// EngagementFlow records landing page interactions and reads campaign counters
type EngagementFlow interface {
	RecordView(ctx context.Context, req *dto.RecordViewRequest, metadata *ClientMetadata) (*dto.RecordEngagementResponse, error)
	RecordPhoneClick(ctx context.Context, req *dto.RecordCampaignEventRequest, metadata *ClientMetadata) (*dto.RecordEngagementResponse, error)
	RecordFormSubmission(ctx context.Context, req *dto.RecordCampaignEventRequest, metadata *ClientMetadata) (*dto.RecordEngagementResponse, error)
	GetCampaignMetrics(ctx context.Context, campaignID string) (*dto.CampaignMetricsResponse, error)
}

// EngagementFlowImpl implements the engagement business flow
type EngagementFlowImpl struct {
	metricRepo   repository.CampaignMetricRepository
	pageViewRepo repository.PageViewEventRepository
	visitors     services.VisitorTracker
	publisher    services.EngagementPublisher
	db           *gorm.DB
}

// NewEngagementFlow creates a new engagement flow instance. visitors and publisher may be nil.
func NewEngagementFlow(
	metricRepo repository.CampaignMetricRepository,
	pageViewRepo repository.PageViewEventRepository,
	visitors services.VisitorTracker,
	publisher services.EngagementPublisher,
	db *gorm.DB,
) EngagementFlow {
	return &EngagementFlowImpl{
		metricRepo:   metricRepo,
		pageViewRepo: pageViewRepo,
		visitors:     visitors,
		publisher:    publisher,
		db:           db,
	}
}

// RecordView stores the raw page view and bumps the views counter
func (f *EngagementFlowImpl) RecordView(ctx context.Context, req *dto.RecordViewRequest, metadata *ClientMetadata) (*dto.RecordEngagementResponse, error) {
	campaignID := strings.TrimSpace(req.CampaignID)
	if campaignID == "" {
		return nil, NewBusinessError("CAMPAIGN_ID_REQUIRED", "Campaign id is required", ErrCampaignIDRequired)
	}
	if metadata == nil {
		metadata = NewClientMetadata("", "")
	}

	visitorKey := services.VisitorKey(metadata.IPAddress, metadata.UserAgent)
	unique, tracked, err := f.isNewVisitor(ctx, campaignID, visitorKey)
	if err != nil {
		return nil, NewBusinessError("VIEW_RECORD_FAILED", "Failed to record view", err)
	}

	event := &models.PageViewEvent{
		CampaignID: campaignID,
		PageURL:    strings.TrimSpace(req.PageURL),
		UserAgent:  utils.NilIfEmpty(metadata.UserAgent),
		IPAddress:  utils.NilIfEmpty(metadata.IPAddress),
		Referer:    req.Referer,
		VisitorKey: visitorKey,
		CreatedAt:  utils.UTCNow(),
	}

	// retry the transaction as a whole; a failed statement aborts it
	err = WithStorageRetry(ctx, "record view", func(ctx context.Context) error {
		return runInTx(ctx, f.db, func(txCtx context.Context) error {
			if err := f.metricRepo.Increment(txCtx, campaignID, models.MetricColumnViews); err != nil {
				return err
			}
			if unique {
				if err := f.metricRepo.Increment(txCtx, campaignID, models.MetricColumnUniqueVisitors); err != nil {
					return err
				}
			}
			event.ID = 0
			return f.pageViewRepo.Save(txCtx, event)
		})
	})
	if err != nil {
		if unique && tracked {
			if uerr := f.visitors.UnmarkVisitor(context.WithoutCancel(ctx), campaignID, visitorKey); uerr != nil {
				log.Printf("engagement: failed to unmark visitor of campaign %s: %v", campaignID, uerr)
			}
		}
		return nil, NewBusinessError("VIEW_RECORD_FAILED", "Failed to record view", err)
	}

	f.publish(services.EngagementEvent{
		Type:       services.EngagementEventView,
		CampaignID: campaignID,
		PageURL:    event.PageURL,
		IP:         metadata.IPAddress,
		UserAgent:  metadata.UserAgent,
	})

	return &dto.RecordEngagementResponse{Message: "View recorded", CampaignID: campaignID}, nil
}

// RecordPhoneClick bumps the phone click counter
func (f *EngagementFlowImpl) RecordPhoneClick(ctx context.Context, req *dto.RecordCampaignEventRequest, metadata *ClientMetadata) (*dto.RecordEngagementResponse, error) {
	return f.recordCounter(ctx, req, metadata, models.MetricColumnPhoneClicks, services.EngagementEventPhoneClick, "Phone click recorded")
}

// RecordFormSubmission bumps the form submission counter
func (f *EngagementFlowImpl) RecordFormSubmission(ctx context.Context, req *dto.RecordCampaignEventRequest, metadata *ClientMetadata) (*dto.RecordEngagementResponse, error) {
	return f.recordCounter(ctx, req, metadata, models.MetricColumnFormSubmissions, services.EngagementEventFormSubmission, "Form submission recorded")
}

func (f *EngagementFlowImpl) recordCounter(ctx context.Context, req *dto.RecordCampaignEventRequest, metadata *ClientMetadata, column, eventType, message string) (*dto.RecordEngagementResponse, error) {
	campaignID := strings.TrimSpace(req.CampaignID)
	if campaignID == "" {
		return nil, NewBusinessError("CAMPAIGN_ID_REQUIRED", "Campaign id is required", ErrCampaignIDRequired)
	}
	if err := f.increment(ctx, campaignID, column); err != nil {
		return nil, NewBusinessErrorf("ENGAGEMENT_RECORD_FAILED", "Failed to record %s", err, eventType)
	}

	event := services.EngagementEvent{Type: eventType, CampaignID: campaignID}
	if metadata != nil {
		event.IP = metadata.IPAddress
		event.UserAgent = metadata.UserAgent
	}
	f.publish(event)

	return &dto.RecordEngagementResponse{Message: message, CampaignID: campaignID}, nil
}

// GetCampaignMetrics returns the counters of a campaign; a campaign with no
// recorded activity reads as all zeros.
func (f *EngagementFlowImpl) GetCampaignMetrics(ctx context.Context, campaignID string) (*dto.CampaignMetricsResponse, error) {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return nil, NewBusinessError("CAMPAIGN_ID_REQUIRED", "Campaign id is required", ErrCampaignIDRequired)
	}
	metric, err := f.metricRepo.ByCampaignID(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("METRICS_LOOKUP_FAILED", "Failed to lookup campaign metrics", err)
	}
	if metric == nil {
		metric = &models.CampaignMetric{CampaignID: campaignID}
	}
	return &dto.CampaignMetricsResponse{
		CampaignID:      campaignID,
		Views:           metric.Views,
		UniqueVisitors:  metric.UniqueVisitors,
		PhoneClicks:     metric.PhoneClicks,
		FormSubmissions: metric.FormSubmissions,
		ConversionRate:  metric.ConversionRate(),
	}, nil
}

func (f *EngagementFlowImpl) increment(ctx context.Context, campaignID, column string) error {
	return WithStorageRetry(ctx, "increment "+column, func(ctx context.Context) error {
		return f.metricRepo.Increment(ctx, campaignID, column)
	})
}

// isNewVisitor asks the visitor tracker first and falls back to the page view table.
// tracked reports whether the tracker recorded the visitor.
func (f *EngagementFlowImpl) isNewVisitor(ctx context.Context, campaignID, visitorKey string) (unique, tracked bool, err error) {
	if f.visitors != nil {
		added, err := f.visitors.MarkVisitor(ctx, campaignID, visitorKey)
		if err == nil {
			return added, true, nil
		}
		log.Printf("engagement: visitor tracker failed, falling back to store: %v", err)
	}
	seen, err := f.pageViewRepo.ExistsVisitor(ctx, campaignID, visitorKey)
	if err != nil {
		return false, false, err
	}
	return !seen, false, nil
}

func (f *EngagementFlowImpl) publish(event services.EngagementEvent) {
	if f.publisher == nil {
		return
	}
	if err := f.publisher.Publish(event); err != nil {
		log.Printf("engagement: publish %s event failed: %v", event.Type, err)
	}
}
