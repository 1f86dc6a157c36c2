package testing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory repositories used by flow, scheduler and handler tests. They follow
// the gorm implementations closely enough for the flows to behave the same:
// lookups return nil, nil on a miss and every conditional update is a
// compare-and-swap under the repository mutex.

// ShortLinkStore is an in-memory repository.ShortLinkRepository
type ShortLinkStore struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.ShortLink
	byCode map[string]uint

	// IncrementErr, when set, is returned by every IncrementClickCount call
	IncrementErr error
}

var _ repository.ShortLinkRepository = (*ShortLinkStore)(nil)

func NewShortLinkStore() *ShortLinkStore {
	return &ShortLinkStore{rows: map[uint]*models.ShortLink{}, byCode: map[string]uint{}}
}

func (s *ShortLinkStore) ByID(ctx context.Context, id uint) (*models.ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (s *ShortLinkStore) ByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byCode[code]; ok {
		cp := *s.rows[id]
		return &cp, nil
	}
	return nil, nil
}

func (s *ShortLinkStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byCode[code]
	return ok, nil
}

func (s *ShortLinkStore) Save(ctx context.Context, link *models.ShortLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byCode[link.Code]; ok && id != link.ID {
		return gorm.ErrDuplicatedKey
	}
	if link.ID == 0 {
		s.nextID++
		link.ID = s.nextID
		if link.CreatedAt.IsZero() {
			link.CreatedAt = utils.UTCNow()
		}
		link.UpdatedAt = link.CreatedAt
	}
	cp := *link
	s.rows[link.ID] = &cp
	s.byCode[link.Code] = link.ID
	return nil
}

func (s *ShortLinkStore) SaveBatch(ctx context.Context, links []*models.ShortLink) error {
	for _, l := range links {
		if err := s.Save(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *ShortLinkStore) IncrementClickCount(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.IncrementErr != nil {
		return s.IncrementErr
	}
	if row, ok := s.rows[id]; ok {
		row.ClickCount++
	}
	return nil
}

func (s *ShortLinkStore) ListCodes(ctx context.Context, afterID uint, limit int) ([]string, uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint, 0, len(s.rows))
	for id := range s.rows {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	codes := make([]string, 0, len(ids))
	last := afterID
	for _, id := range ids {
		codes = append(codes, s.rows[id].Code)
		last = id
	}
	return codes, last, nil
}

func (s *ShortLinkStore) matches(row *models.ShortLink, f models.ShortLinkFilter) bool {
	switch {
	case f.ID != nil && row.ID != *f.ID:
		return false
	case f.Code != nil && row.Code != *f.Code:
		return false
	case f.CampaignID != nil && (row.CampaignID == nil || *row.CampaignID != *f.CampaignID):
		return false
	case f.CreatedAfter != nil && row.CreatedAt.Before(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && !row.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

func (s *ShortLinkStore) ByFilter(ctx context.Context, f models.ShortLinkFilter, orderBy string, limit, offset int) ([]*models.ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ShortLink
	for _, row := range s.rows {
		if s.matches(row, f) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (s *ShortLinkStore) Count(ctx context.Context, f models.ShortLinkFilter) (int64, error) {
	rows, _ := s.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (s *ShortLinkStore) Exists(ctx context.Context, f models.ShortLinkFilter) (bool, error) {
	n, _ := s.Count(ctx, f)
	return n > 0, nil
}

// CampaignMetricStore is an in-memory repository.CampaignMetricRepository
type CampaignMetricStore struct {
	mu   sync.Mutex
	rows map[string]*models.CampaignMetric

	// FailIncrements makes the next n Increment calls fail
	FailIncrements int
}

// ErrInjected is returned by stores told to fail
var ErrInjected = errors.New("in-memory store: injected failure")

var _ repository.CampaignMetricRepository = (*CampaignMetricStore)(nil)

func NewCampaignMetricStore() *CampaignMetricStore {
	return &CampaignMetricStore{rows: map[string]*models.CampaignMetric{}}
}

func (s *CampaignMetricStore) ByCampaignID(ctx context.Context, campaignID string) (*models.CampaignMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[campaignID]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (s *CampaignMetricStore) Increment(ctx context.Context, campaignID string, column string) error {
	if !models.IsMetricColumn(column) {
		return fmt.Errorf("unknown metric column %q", column)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailIncrements > 0 {
		s.FailIncrements--
		return ErrInjected
	}
	row, ok := s.rows[campaignID]
	if !ok {
		row = &models.CampaignMetric{ID: uint(len(s.rows) + 1), CampaignID: campaignID, CreatedAt: utils.UTCNow()}
		s.rows[campaignID] = row
	}
	switch column {
	case models.MetricColumnViews:
		row.Views++
	case models.MetricColumnUniqueVisitors:
		row.UniqueVisitors++
	case models.MetricColumnPhoneClicks:
		row.PhoneClicks++
	case models.MetricColumnFormSubmissions:
		row.FormSubmissions++
	}
	row.UpdatedAt = utils.UTCNow()
	return nil
}

// PageViewEventStore is an in-memory repository.PageViewEventRepository
type PageViewEventStore struct {
	mu     sync.Mutex
	events []models.PageViewEvent
}

var _ repository.PageViewEventRepository = (*PageViewEventStore)(nil)

func NewPageViewEventStore() *PageViewEventStore { return &PageViewEventStore{} }

func (s *PageViewEventStore) Save(ctx context.Context, event *models.PageViewEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = uint(len(s.events) + 1)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = utils.UTCNow()
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *PageViewEventStore) ExistsVisitor(ctx context.Context, campaignID, visitorKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.CampaignID == campaignID && e.VisitorKey == visitorKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *PageViewEventStore) CountByCampaign(ctx context.Context, campaignID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.events {
		if e.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

// HubContentStore is an in-memory repository.HubContentRepository.
// Soft-deleted rows are hidden from lookups like gorm's default scope.
type HubContentStore struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.HubContent
}

var _ repository.HubContentRepository = (*HubContentStore)(nil)

func NewHubContentStore() *HubContentStore {
	return &HubContentStore{rows: map[uint]*models.HubContent{}}
}

func cloneHub(h *models.HubContent) *models.HubContent {
	cp := *h
	cp.ChannelStatus = make(models.ChannelStatusMap, len(h.ChannelStatus))
	for k, v := range h.ChannelStatus {
		cp.ChannelStatus[k] = v
	}
	if h.BlogPostID != nil {
		id := *h.BlogPostID
		cp.BlogPostID = &id
	}
	return &cp
}

func (s *HubContentStore) ByID(ctx context.Context, id uint) (*models.HubContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok && !row.DeletedAt.Valid {
		return cloneHub(row), nil
	}
	return nil, nil
}

func (s *HubContentStore) ByUUID(ctx context.Context, id uuid.UUID) (*models.HubContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UUID == id && !row.DeletedAt.Valid {
			return cloneHub(row), nil
		}
	}
	return nil, nil
}

func (s *HubContentStore) Save(ctx context.Context, hub *models.HubContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hub.ID == 0 {
		if err := hub.BeforeCreate(nil); err != nil {
			return err
		}
		s.nextID++
		hub.ID = s.nextID
	}
	s.rows[hub.ID] = cloneHub(hub)
	return nil
}

func (s *HubContentStore) SoftDelete(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		row.DeletedAt = gorm.DeletedAt{Time: utils.UTCNow(), Valid: true}
	}
	return nil
}

func (s *HubContentStore) MergeChannelStatus(ctx context.Context, id uint, channel string, entry models.ChannelStatusEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.DeletedAt.Valid {
		return gorm.ErrRecordNotFound
	}
	if row.ChannelStatus == nil {
		row.ChannelStatus = models.ChannelStatusMap{}
	}
	if prev, ok := row.ChannelStatus[channel]; ok {
		entry.CreatedAt = prev.CreatedAt
	}
	row.ChannelStatus[channel] = entry
	row.UpdatedAt = utils.UTCNow()
	return nil
}

func (s *HubContentStore) SetBlogPostIDIfNull(ctx context.Context, id uint, blogPostID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.DeletedAt.Valid || row.BlogPostID != nil {
		return false, nil
	}
	row.BlogPostID = &blogPostID
	return true, nil
}

// BlogPostStore is an in-memory repository.BlogPostRepository
type BlogPostStore struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.BlogPost
}

var _ repository.BlogPostRepository = (*BlogPostStore)(nil)

func NewBlogPostStore() *BlogPostStore {
	return &BlogPostStore{rows: map[uint]*models.BlogPost{}}
}

func (s *BlogPostStore) ByID(ctx context.Context, id uint) (*models.BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (s *BlogPostStore) Save(ctx context.Context, post *models.BlogPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.ID == 0 {
		s.nextID++
		post.ID = s.nextID
	}
	if post.UUID == uuid.Nil {
		post.UUID = uuid.New()
	}
	cp := *post
	s.rows[post.ID] = &cp
	return nil
}

func (s *BlogPostStore) Delete(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Len returns how many posts are stored
func (s *BlogPostStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// DispatchStore is an in-memory repository.DispatchRepository
type DispatchStore struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.Dispatch

	// ClaimDelay, when set, is slept between the status check and the write of
	// a claim, widening the race window in tests.
	ClaimDelay time.Duration
}

var _ repository.DispatchRepository = (*DispatchStore)(nil)

func NewDispatchStore() *DispatchStore {
	return &DispatchStore{rows: map[uint]*models.Dispatch{}}
}

func cloneDispatch(d *models.Dispatch) *models.Dispatch {
	cp := *d
	cp.RecipientNumbers = append([]string(nil), d.RecipientNumbers...)
	cp.PerRecipientResult = make(models.RecipientResultMap, len(d.PerRecipientResult))
	for k, v := range d.PerRecipientResult {
		cp.PerRecipientResult[k] = v
	}
	return &cp
}

func (s *DispatchStore) ByID(ctx context.Context, id uint) (*models.Dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		return cloneDispatch(row), nil
	}
	return nil, nil
}

func (s *DispatchStore) ByUUID(ctx context.Context, id uuid.UUID) (*models.Dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UUID == id {
			return cloneDispatch(row), nil
		}
	}
	return nil, nil
}

func (s *DispatchStore) ByExternalGroupID(ctx context.Context, externalGroupID string) (*models.Dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.Dispatch
	for _, row := range s.rows {
		if row.ExternalGroupID != nil && *row.ExternalGroupID == externalGroupID {
			if found == nil || row.ID > found.ID {
				found = row
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	return cloneDispatch(found), nil
}

func (s *DispatchStore) Save(ctx context.Context, d *models.Dispatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		if err := d.BeforeCreate(nil); err != nil {
			return err
		}
		s.nextID++
		d.ID = s.nextID
	}
	s.rows[d.ID] = cloneDispatch(d)
	return nil
}

func (s *DispatchStore) SaveBatch(ctx context.Context, ds []*models.Dispatch) error {
	for _, d := range ds {
		if err := s.Save(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (s *DispatchStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Dispatch
	for _, row := range s.rows {
		if row.Status == models.DispatchStatusScheduled && row.DeletedAt == nil &&
			row.ScheduledAt != nil && !row.ScheduledAt.After(now) {
			out = append(out, cloneDispatch(row))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(*out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(*out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Writes fail with ctx.Err() on a done context, the way a database driver does.
func (s *DispatchStore) TransitionStatus(ctx context.Context, id uint, from, to models.DispatchStatus, fields map[string]any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	row, ok := s.rows[id]
	if !ok || row.Status != from {
		s.mu.Unlock()
		return false, nil
	}
	if s.ClaimDelay > 0 && to == models.DispatchStatusSending {
		// hold the lock: the check and the write stay atomic
		time.Sleep(s.ClaimDelay)
	}
	defer s.mu.Unlock()
	if err := applyDispatchFields(row, fields); err != nil {
		return false, err
	}
	row.Status = to
	row.UpdatedAt = utils.UTCNow()
	return true, nil
}

func (s *DispatchStore) ClaimDue(ctx context.Context, id uint, now time.Time) (*models.Dispatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok || row.Status != models.DispatchStatusScheduled || row.DeletedAt != nil ||
		row.ScheduledAt == nil || row.ScheduledAt.After(now) {
		return nil, nil
	}
	if s.ClaimDelay > 0 {
		time.Sleep(s.ClaimDelay)
	}
	claimedAt := now
	row.Status = models.DispatchStatusSending
	row.ClaimedAt = &claimedAt
	row.UpdatedAt = utils.UTCNow()
	return cloneDispatch(row), nil
}

func (s *DispatchStore) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil
	}
	if err := applyDispatchFields(row, fields); err != nil {
		return err
	}
	row.UpdatedAt = utils.UTCNow()
	return nil
}

func (s *DispatchStore) SetMediaHandle(ctx context.Context, id uint, handle string) error {
	return s.UpdateFields(ctx, id, map[string]any{"media_handle": handle})
}

func (s *DispatchStore) matches(row *models.Dispatch, f models.DispatchFilter) bool {
	switch {
	case f.ID != nil && row.ID != *f.ID:
		return false
	case f.UUID != nil && row.UUID != *f.UUID:
		return false
	case f.BatchGroupID != nil && row.BatchGroupID != *f.BatchGroupID:
		return false
	case f.HubContentID != nil && (row.HubContentID == nil || *row.HubContentID != *f.HubContentID):
		return false
	case f.Channel != nil && row.Channel != *f.Channel:
		return false
	case f.Status != nil && row.Status != *f.Status:
		return false
	case !f.IncludeDeleted && row.DeletedAt != nil:
		return false
	case f.CreatedAfter != nil && row.CreatedAt.Before(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && !row.CreatedAt.Before(*f.CreatedBefore):
		return false
	}
	return true
}

// ByFilter orders by id descending, which matches "created_at DESC, id DESC" for rows created in order
func (s *DispatchStore) ByFilter(ctx context.Context, f models.DispatchFilter, orderBy string, limit, offset int) ([]*models.Dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Dispatch
	for _, row := range s.rows {
		if s.matches(row, f) {
			out = append(out, cloneDispatch(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), nil
}

func (s *DispatchStore) Count(ctx context.Context, f models.DispatchFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.rows {
		if s.matches(row, f) {
			n++
		}
	}
	return n, nil
}

func (s *DispatchStore) Exists(ctx context.Context, f models.DispatchFilter) (bool, error) {
	n, _ := s.Count(ctx, f)
	return n > 0, nil
}

// applyDispatchFields mirrors the column updates the flows hand to UpdateColumns
func applyDispatchFields(d *models.Dispatch, fields map[string]any) error {
	for k, v := range fields {
		switch k {
		case "status":
			d.Status = v.(models.DispatchStatus)
		case "message_text":
			d.MessageText = v.(string)
		case "media_ref":
			d.MediaRef = stringPtr(v)
		case "media_handle":
			d.MediaHandle = stringPtr(v)
		case "external_group_id":
			d.ExternalGroupID = stringPtr(v)
		case "last_error":
			d.LastError = stringPtr(v)
		case "scheduled_at":
			d.ScheduledAt = timePtr(v)
		case "claimed_at":
			d.ClaimedAt = timePtr(v)
		case "sent_at":
			d.SentAt = timePtr(v)
		case "deleted_at":
			d.DeletedAt = timePtr(v)
		case "per_recipient_result":
			m, _ := v.(models.RecipientResultMap)
			d.PerRecipientResult = m
		default:
			return fmt.Errorf("in-memory dispatch store: unsupported column %q", k)
		}
	}
	return nil
}

func stringPtr(v any) *string {
	switch x := v.(type) {
	case string:
		return &x
	case *string:
		if x == nil {
			return nil
		}
		s := *x
		return &s
	}
	return nil
}

func timePtr(v any) *time.Time {
	switch x := v.(type) {
	case time.Time:
		return &x
	case *time.Time:
		if x == nil {
			return nil
		}
		t := *x
		return &t
	}
	return nil
}

// DispatchAuditLogStore is an in-memory repository.DispatchAuditLogRepository
type DispatchAuditLogStore struct {
	mu   sync.Mutex
	rows []*models.DispatchAuditLog
}

var _ repository.DispatchAuditLogRepository = (*DispatchAuditLogStore)(nil)

func NewDispatchAuditLogStore() *DispatchAuditLogStore { return &DispatchAuditLogStore{} }

func (s *DispatchAuditLogStore) Save(ctx context.Context, entry *models.DispatchAuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uint(len(s.rows) + 1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = utils.UTCNow()
	}
	cp := *entry
	s.rows = append(s.rows, &cp)
	return nil
}

func (s *DispatchAuditLogStore) ByFilter(ctx context.Context, f models.DispatchAuditLogFilter, orderBy string, limit, offset int) ([]*models.DispatchAuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DispatchAuditLog
	for _, row := range s.rows {
		if f.DispatchID != nil && row.DispatchID != *f.DispatchID {
			continue
		}
		if f.Action != nil && row.Action != *f.Action {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return page(out, limit, offset), nil
}

// Actions returns the audit actions recorded for a dispatch, oldest first
func (s *DispatchAuditLogStore) Actions(dispatchID uint) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, row := range s.rows {
		if row.DispatchID == dispatchID {
			out = append(out, row.Action)
		}
	}
	return out
}

// DeliveryStatusJobStore is an in-memory repository.DeliveryStatusJobRepository
type DeliveryStatusJobStore struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.DeliveryStatusJob
}

var _ repository.DeliveryStatusJobRepository = (*DeliveryStatusJobStore)(nil)

func NewDeliveryStatusJobStore() *DeliveryStatusJobStore {
	return &DeliveryStatusJobStore{rows: map[uint]*models.DeliveryStatusJob{}}
}

func (s *DeliveryStatusJobStore) SaveBatch(ctx context.Context, jobs []*models.DeliveryStatusJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range jobs {
		if j.ID == 0 {
			s.nextID++
			j.ID = s.nextID
		}
		cp := *j
		s.rows[j.ID] = &cp
	}
	return nil
}

func (s *DeliveryStatusJobStore) ListDue(ctx context.Context, now time.Time, maxRetries, limit int) ([]*models.DeliveryStatusJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DeliveryStatusJob
	for _, j := range s.rows {
		if j.ExecutedAt == nil && j.RetryCount < maxRetries && !j.ScheduledAt.After(now) {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].ScheduledAt.Equal(out[k].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[k].ScheduledAt)
		}
		return out[i].ID < out[k].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *DeliveryStatusJobStore) Update(ctx context.Context, job *models.DeliveryStatusJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.rows[job.ID] = &cp
	return nil
}

// All returns every job ordered by id
func (s *DeliveryStatusJobStore) All() []models.DeliveryStatusJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DeliveryStatusJob, 0, len(s.rows))
	for _, j := range s.rows {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// MediaHandleStore is an in-memory repository.MediaHandleRepository
type MediaHandleStore struct {
	mu   sync.Mutex
	rows map[string]*models.MediaHandle
}

var _ repository.MediaHandleRepository = (*MediaHandleStore)(nil)

func NewMediaHandleStore() *MediaHandleStore {
	return &MediaHandleStore{rows: map[string]*models.MediaHandle{}}
}

func (s *MediaHandleStore) BySource(ctx context.Context, sourceURL string, channel models.ChannelType) (*models.MediaHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[string(channel)+"|"+sourceURL]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (s *MediaHandleStore) SaveIfAbsent(ctx context.Context, handle *models.MediaHandle) (*models.MediaHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(handle.Channel) + "|" + handle.SourceURL
	if row, ok := s.rows[key]; ok {
		cp := *row
		return &cp, nil
	}
	handle.ID = uint(len(s.rows) + 1)
	cp := *handle
	s.rows[key] = &cp
	return handle, nil
}

// MultimediaAssetStore is an in-memory repository.MultimediaAssetRepository
type MultimediaAssetStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.MultimediaAsset
}

var _ repository.MultimediaAssetRepository = (*MultimediaAssetStore)(nil)

func NewMultimediaAssetStore() *MultimediaAssetStore {
	return &MultimediaAssetStore{rows: map[uuid.UUID]*models.MultimediaAsset{}}
}

func (s *MultimediaAssetStore) ByUUID(ctx context.Context, id uuid.UUID) (*models.MultimediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (s *MultimediaAssetStore) Save(ctx context.Context, asset *models.MultimediaAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := asset.BeforeCreate(nil); err != nil {
		return err
	}
	if asset.ID == 0 {
		asset.ID = uint(len(s.rows) + 1)
	}
	cp := *asset
	s.rows[asset.UUID] = &cp
	return nil
}

func page[T any](rows []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
