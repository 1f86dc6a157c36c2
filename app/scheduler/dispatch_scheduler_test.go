package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/app/services"
	businessflow "github.com/amirphl/campaign-hub/business_flow"
	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	testingutil "github.com/amirphl/campaign-hub/testing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []services.DispatchOutcomeEvent
	err    error
}

func (n *recordingNotifier) NotifyDispatchOutcome(ctx context.Context, event services.DispatchOutcomeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) Events() []services.DispatchOutcomeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]services.DispatchOutcomeEvent(nil), n.events...)
}

type stubMediaResolver struct {
	mu        sync.Mutex
	calls     int
	err       error
	onResolve func()
}

func (r *stubMediaResolver) Resolve(ctx context.Context, channel models.ChannelType, mediaRef string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.onResolve != nil {
		r.onResolve()
	}
	if r.err != nil {
		return "", r.err
	}
	return "gw-handle-" + string(channel), nil
}

type schedulerFixture struct {
	dispatches *testingutil.DispatchStore
	audits     *testingutil.DispatchAuditLogStore
	jobs       *testingutil.DeliveryStatusJobStore
	hubs       *testingutil.HubContentStore
	gateway    *services.MockChannelGateway
	media      *stubMediaResolver
	notifier   *recordingNotifier
	reconciler businessflow.StatusReconcilerFlow
	cfg        config.SchedulerConfig
	scheduler  *DispatchScheduler
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		dispatches: testingutil.NewDispatchStore(),
		audits:     testingutil.NewDispatchAuditLogStore(),
		jobs:       testingutil.NewDeliveryStatusJobStore(),
		hubs:       testingutil.NewHubContentStore(),
		gateway:    services.NewMockChannelGateway(),
		media:      &stubMediaResolver{},
		notifier:   &recordingNotifier{},
		cfg: config.SchedulerConfig{
			PollInterval: time.Hour,
			Concurrency:  4,
			SendTimeout:  2 * time.Second,
			LogFilePath:  filepath.Join(t.TempDir(), "scheduler.log"),
		},
	}
	f.reconciler = businessflow.NewStatusReconcilerFlow(f.hubs, testingutil.NewBlogPostStore(), nil)
	s := NewDispatchScheduler(f.dispatches, f.audits, f.jobs, f.gateway, f.media, f.reconciler, f.notifier, nil, f.cfg)
	t.Cleanup(func() { _ = s.logFile.Close() })
	f.scheduler = s
	return f
}

func (f *schedulerFixture) dueDispatch(t *testing.T, channel models.ChannelType, hubID *uint, recipients []string) *models.Dispatch {
	t.Helper()
	past := time.Now().UTC().Add(-time.Minute)
	d := &models.Dispatch{
		HubContentID:     hubID,
		Channel:          channel,
		RecipientNumbers: recipients,
		MessageText:      "Spring sale starts today",
		Status:           models.DispatchStatusScheduled,
		ScheduledAt:      &past,
	}
	if channel == models.ChannelMMS {
		ref := "https://cdn.example.com/banner.jpg"
		d.MediaRef = &ref
	}
	require.NoError(t, f.dispatches.Save(context.Background(), d))
	return d
}

func (f *schedulerFixture) reload(t *testing.T, id uint) *models.Dispatch {
	t.Helper()
	d, err := f.dispatches.ByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, d)
	return d
}

func TestRunOnceSendsDueDispatch(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	hub := &models.HubContent{Title: "Launch"}
	require.NoError(t, f.hubs.Save(ctx, hub))

	f.gateway.SendFunc = func(ctx context.Context, req services.SendRequest) (*services.SendResult, error) {
		out := &services.SendResult{ExternalGroupID: "grp-42"}
		for _, r := range req.Recipients {
			out.Recipients = append(out.Recipients, services.RecipientSendResult{Recipient: r, Accepted: true})
		}
		return out, nil
	}

	d := f.dueDispatch(t, models.ChannelSMS, &hub.ID, []string{"+821000000001", "+821000000002"})

	summary := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, summary.Due)
	assert.Equal(t, 1, summary.Sent)

	stored := f.reload(t, d.ID)
	assert.Equal(t, models.DispatchStatusSent, stored.Status)
	require.NotNil(t, stored.ExternalGroupID)
	assert.Equal(t, "grp-42", *stored.ExternalGroupID)
	assert.NotNil(t, stored.SentAt)
	assert.Len(t, stored.PerRecipientResult, 2)
	assert.Zero(t, stored.PerRecipientResult.FailedCount())

	assert.Equal(t, []string{models.DispatchActionClaimed, models.DispatchActionSent}, f.audits.Actions(d.ID))

	storedHub, err := f.hubs.ByID(ctx, hub.ID)
	require.NoError(t, err)
	entry, ok := storedHub.ChannelStatus["sms"]
	require.True(t, ok)
	assert.Equal(t, models.ChannelStateSent, entry.Status)
	require.NotNil(t, entry.ExternalID)
	assert.Equal(t, "grp-42", *entry.ExternalID)

	events := f.notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "sent", events[0].Status)

	jobs := f.jobs.All()
	require.Len(t, jobs, 3)
	for _, j := range jobs {
		assert.Equal(t, "grp-42", j.ExternalGroupID)
		assert.Equal(t, d.ID, j.DispatchID)
		assert.True(t, j.ScheduledAt.After(*stored.SentAt))
	}

	again := f.scheduler.RunOnce(ctx)
	assert.Zero(t, again.Due, "a sent dispatch is never picked up again")
}

func TestRunOnceConcurrentPollersSendOnce(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	f.dispatches.ClaimDelay = 20 * time.Millisecond
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})

	other := NewDispatchScheduler(f.dispatches, f.audits, f.jobs, f.gateway, f.media, f.reconciler, f.notifier, nil, f.cfg)
	t.Cleanup(func() { _ = other.logFile.Close() })

	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0
	for _, s := range []*DispatchScheduler{f.scheduler, other} {
		wg.Add(1)
		go func(s *DispatchScheduler) {
			defer wg.Done()
			summary := s.RunOnce(ctx)
			mu.Lock()
			sent += summary.Sent
			mu.Unlock()
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 1, sent)
	assert.Len(t, f.gateway.Sends(), 1)
	assert.Equal(t, models.DispatchStatusSent, f.reload(t, d.ID).Status)

	claims := 0
	for _, a := range f.audits.Actions(d.ID) {
		if a == models.DispatchActionClaimed {
			claims++
		}
	}
	assert.Equal(t, 1, claims)
}

func TestClaimLosesToEarlierClaim(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})

	claimed, err := f.scheduler.claim(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, models.DispatchStatusSending, claimed.Status)
	assert.NotNil(t, claimed.ClaimedAt)

	_, err = f.scheduler.claim(ctx, d)
	assert.True(t, businessflow.IsClaimConflict(err))
	assert.Equal(t, models.DispatchStatusSending, f.reload(t, d.ID).Status)
}

func TestClaimRechecksDueness(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)

	later := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})
	require.NoError(t, f.dispatches.UpdateFields(ctx, later.ID, map[string]any{
		"scheduled_at": time.Now().UTC().Add(24 * time.Hour),
	}))
	_, err := f.scheduler.claim(ctx, later)
	assert.True(t, businessflow.IsClaimConflict(err))
	assert.Equal(t, models.DispatchStatusScheduled, f.reload(t, later.ID).Status)

	canceled := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000002"})
	require.NoError(t, f.dispatches.UpdateFields(ctx, canceled.ID, map[string]any{
		"deleted_at": time.Now().UTC(),
	}))
	_, err = f.scheduler.claim(ctx, canceled)
	assert.True(t, businessflow.IsClaimConflict(err))

	edited := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000003"})
	require.NoError(t, f.dispatches.UpdateFields(ctx, edited.ID, map[string]any{
		"message_text": "Spring sale moved to Friday",
	}))
	claimed, err := f.scheduler.claim(ctx, edited)
	require.NoError(t, err)
	assert.Equal(t, "Spring sale moved to Friday", claimed.MessageText)
}

func TestRunOnceHonorsChangesMadeWhileQueued(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	f.cfg.Concurrency = 1
	s := NewDispatchScheduler(f.dispatches, f.audits, f.jobs, f.gateway, f.media, f.reconciler, f.notifier, nil, f.cfg)
	t.Cleanup(func() { _ = s.logFile.Close() })
	f.scheduler = s

	first := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})
	edited := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000002"})
	moved := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000003"})

	flow := businessflow.NewDispatchFlow(f.dispatches, f.audits, nil)
	newText := "Spring sale moved to Friday"
	tomorrow := time.Now().UTC().Add(24 * time.Hour)
	f.gateway.SendFunc = func(_ context.Context, req services.SendRequest) (*services.SendResult, error) {
		if req.Recipients[0] == "+821000000001" {
			// both rows were already listed as due when these commit
			_, err := flow.UpdateDispatch(context.Background(), edited.ID, &dto.UpdateDispatchRequest{MessageText: &newText}, nil)
			assert.NoError(t, err)
			_, err = flow.RescheduleDispatch(context.Background(), moved.ID, &dto.RescheduleDispatchRequest{ScheduledAt: tomorrow}, nil)
			assert.NoError(t, err)
		}
		return &services.SendResult{ExternalGroupID: "grp-" + req.Recipients[0]}, nil
	}

	summary := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 3, summary.Due)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 1, summary.Conflicts)

	assert.Equal(t, models.DispatchStatusSent, f.reload(t, first.ID).Status)
	assert.Equal(t, models.DispatchStatusSent, f.reload(t, edited.ID).Status)

	stillScheduled := f.reload(t, moved.ID)
	assert.Equal(t, models.DispatchStatusScheduled, stillScheduled.Status)
	require.NotNil(t, stillScheduled.ScheduledAt)
	assert.True(t, stillScheduled.ScheduledAt.After(time.Now().UTC()))

	sends := f.gateway.Sends()
	require.Len(t, sends, 2)
	assert.Equal(t, []string{"+821000000002"}, sends[1].Recipients)
	assert.Equal(t, newText, sends[1].Payload.Text())
}

func TestRunOnceRecordsFailureAfterCycleDeadline(t *testing.T) {
	f := newSchedulerFixture(t)
	f.gateway.SendFunc = func(ctx context.Context, req services.SendRequest) (*services.SendResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	summary := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, summary.Failed)

	stored := f.reload(t, d.ID)
	assert.Equal(t, models.DispatchStatusFailed, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, businessflow.ErrGatewaySendFailure.Error())
	assert.Equal(t, []string{models.DispatchActionClaimed, models.DispatchActionFailed}, f.audits.Actions(d.ID))
	require.Len(t, f.notifier.Events(), 1)

	again := f.scheduler.RunOnce(context.Background())
	assert.Zero(t, again.Due)
	assert.Len(t, f.gateway.Sends(), 1)
}

func TestRunOnceRecordsAcceptedSendAfterCancel(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.gateway.SendFunc = func(_ context.Context, req services.SendRequest) (*services.SendResult, error) {
		cancel()
		return &services.SendResult{ExternalGroupID: "grp-late"}, nil
	}
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})

	summary := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, summary.Sent)

	stored := f.reload(t, d.ID)
	assert.Equal(t, models.DispatchStatusSent, stored.Status)
	require.NotNil(t, stored.ExternalGroupID)
	assert.Equal(t, "grp-late", *stored.ExternalGroupID)
	assert.Len(t, f.jobs.All(), 3)
}

func TestRunOnceReleasesClaimCanceledBeforeSend(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.media.onResolve = cancel
	d := f.dueDispatch(t, models.ChannelMMS, nil, []string{"+821000000001"})

	summary := f.scheduler.RunOnce(ctx)
	assert.Zero(t, summary.Claimed)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, f.gateway.Sends())

	stored := f.reload(t, d.ID)
	assert.Equal(t, models.DispatchStatusScheduled, stored.Status)
	assert.Nil(t, stored.ClaimedAt)
	assert.Equal(t, []string{models.DispatchActionClaimed, models.DispatchActionReleased}, f.audits.Actions(d.ID))

	f.media.onResolve = nil
	again := f.scheduler.RunOnce(context.Background())
	assert.Equal(t, 1, again.Sent)
	assert.Equal(t, models.DispatchStatusSent, f.reload(t, d.ID).Status)
}

func TestRunOnceHubStatusCoversWholeBatch(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	f.cfg.Concurrency = 1
	s := NewDispatchScheduler(f.dispatches, f.audits, f.jobs, f.gateway, f.media, f.reconciler, f.notifier, nil, f.cfg)
	t.Cleanup(func() { _ = s.logFile.Close() })
	f.scheduler = s

	hub := &models.HubContent{Title: "Launch"}
	require.NoError(t, f.hubs.Save(ctx, hub))
	group := uuid.New()
	past := time.Now().UTC().Add(-time.Minute)
	for i, recipient := range []string{"+821000000001", "+821000000002"} {
		at := past.Add(time.Duration(i) * time.Second)
		require.NoError(t, f.dispatches.Save(ctx, &models.Dispatch{
			BatchGroupID:     group,
			ChunkIndex:       i,
			HubContentID:     &hub.ID,
			Channel:          models.ChannelSMS,
			RecipientNumbers: []string{recipient},
			MessageText:      "Spring sale starts today",
			Status:           models.DispatchStatusScheduled,
			ScheduledAt:      &at,
		}))
	}
	f.gateway.SendFunc = func(_ context.Context, req services.SendRequest) (*services.SendResult, error) {
		if req.Recipients[0] == "+821000000001" {
			return nil, errors.New("503 service unavailable")
		}
		return &services.SendResult{ExternalGroupID: "grp-2"}, nil
	}

	summary := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Sent)

	storedHub, err := f.hubs.ByID(ctx, hub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelStatePartial, storedHub.ChannelStatus["sms"].Status,
		"a sent chunk does not hide a failed one")
}

func TestMergeChunkStatuses(t *testing.T) {
	sent, partial, failed := models.DispatchStatusSent, models.DispatchStatusPartiallyFailed, models.DispatchStatusFailed
	sending := models.DispatchStatusSending

	assert.Equal(t, sent, mergeChunkStatuses([]models.DispatchStatus{sent, sent, sending}, sent))
	assert.Equal(t, failed, mergeChunkStatuses([]models.DispatchStatus{failed, failed}, failed))
	assert.Equal(t, partial, mergeChunkStatuses([]models.DispatchStatus{sent, failed}, sent))
	assert.Equal(t, partial, mergeChunkStatuses([]models.DispatchStatus{sent, partial}, sent))
	assert.Equal(t, sending, mergeChunkStatuses([]models.DispatchStatus{sending}, sending))
}

func TestRunOnceGatewayFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	f.gateway.SendFunc = func(ctx context.Context, req services.SendRequest) (*services.SendResult, error) {
		return nil, errors.New("503 service unavailable")
	}
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})

	summary := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, summary.Failed)

	stored := f.reload(t, d.ID)
	assert.Equal(t, models.DispatchStatusFailed, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "503")
	assert.Contains(t, *stored.LastError, businessflow.ErrGatewaySendFailure.Error())
	assert.Empty(t, f.jobs.All())

	again := f.scheduler.RunOnce(ctx)
	assert.Zero(t, again.Due, "failed dispatches are not retried automatically")
	assert.Len(t, f.gateway.Sends(), 1)
}

func TestRunOnceSendTimeout(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	f.cfg.SendTimeout = 50 * time.Millisecond
	s := NewDispatchScheduler(f.dispatches, f.audits, f.jobs, f.gateway, f.media, f.reconciler, f.notifier, nil, f.cfg)
	t.Cleanup(func() { _ = s.logFile.Close() })
	f.scheduler = s

	f.gateway.SendFunc = func(ctx context.Context, req services.SendRequest) (*services.SendResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})

	summary := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, models.DispatchStatusFailed, f.reload(t, d.ID).Status)
}

func TestRunOncePartialRejection(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	code := "INVALID_NUMBER"
	f.gateway.SendFunc = func(ctx context.Context, req services.SendRequest) (*services.SendResult, error) {
		return &services.SendResult{
			ExternalGroupID: "grp-7",
			Recipients: []services.RecipientSendResult{
				{Recipient: req.Recipients[0], Accepted: true},
				{Recipient: req.Recipients[1], Accepted: false, ErrorCode: &code},
			},
		}, nil
	}
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001", "+821000000002", "+821000000003"})

	summary := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, summary.PartiallyFailed)

	stored := f.reload(t, d.ID)
	assert.Equal(t, models.DispatchStatusPartiallyFailed, stored.Status)
	assert.Equal(t, 1, stored.PerRecipientResult.FailedCount())
	assert.Equal(t, models.RecipientStateAccepted, stored.PerRecipientResult["+821000000003"].Status)
}

func TestRunOnceResolvesMediaOnce(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	d := f.dueDispatch(t, models.ChannelMMS, nil, []string{"+821000000001"})

	f.scheduler.RunOnce(ctx)

	stored := f.reload(t, d.ID)
	assert.Equal(t, models.DispatchStatusSent, stored.Status)
	require.NotNil(t, stored.MediaHandle)
	assert.Equal(t, "gw-handle-mms", *stored.MediaHandle)
	assert.Equal(t, 1, f.media.calls)

	sends := f.gateway.Sends()
	require.Len(t, sends, 1)
	require.NotNil(t, sends[0].MediaHandle)
	assert.Equal(t, "gw-handle-mms", *sends[0].MediaHandle)
}

func TestRunOnceMediaFailureFailsDispatch(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	f.media.err = errors.New("upload rejected")
	d := f.dueDispatch(t, models.ChannelMMS, nil, []string{"+821000000001"})

	summary := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, f.gateway.Sends())

	stored := f.reload(t, d.ID)
	assert.Equal(t, models.DispatchStatusFailed, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "media")
}

func TestNotifyFailureKeepsOutcome(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	f.notifier.err = errors.New("webhook 500")
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})

	summary := f.scheduler.RunOnce(ctx)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, models.DispatchStatusSent, f.reload(t, d.ID).Status)
	assert.Contains(t, f.audits.Actions(d.ID), models.DispatchActionNotifyFailed)
}

func TestRunOnceIgnoresFutureAndDraft(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, f.dispatches.Save(ctx, &models.Dispatch{
		Channel: models.ChannelSMS, RecipientNumbers: []string{"+1"}, MessageText: "later",
		Status: models.DispatchStatusScheduled, ScheduledAt: &future,
	}))
	require.NoError(t, f.dispatches.Save(ctx, &models.Dispatch{
		Channel: models.ChannelSMS, RecipientNumbers: []string{"+1"}, MessageText: "draft",
		Status: models.DispatchStatusDraft,
	}))

	summary := f.scheduler.RunOnce(ctx)
	assert.Zero(t, summary.Due)
	assert.Empty(t, f.gateway.Sends())
}

func TestStartAndStop(t *testing.T) {
	f := newSchedulerFixture(t)
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})

	stop := f.scheduler.Start(context.Background())
	require.Eventually(t, func() bool {
		return f.reload(t, d.ID).Status == models.DispatchStatusSent
	}, 2*time.Second, 10*time.Millisecond)
	stop()
}

func TestRecipientResultsFromSend(t *testing.T) {
	at := time.Now().UTC()
	code := "E1"
	results := RecipientResultsFromSend([]string{"+1", "+2", "+3"}, &services.SendResult{
		Recipients: []services.RecipientSendResult{
			{Recipient: "+2", Accepted: false, ErrorCode: &code},
			{Recipient: "+9", Accepted: false},
		},
	}, at)

	require.Len(t, results, 3)
	assert.Equal(t, models.RecipientStateAccepted, results["+1"].Status)
	assert.Equal(t, models.RecipientStateFailed, results["+2"].Status)
	assert.Equal(t, &code, results["+2"].ErrorCode)
	assert.Equal(t, models.RecipientStateAccepted, results["+3"].Status)
	_, unknown := results["+9"]
	assert.False(t, unknown)

	assert.Len(t, RecipientResultsFromSend([]string{"+1"}, nil, at), 1)
}
