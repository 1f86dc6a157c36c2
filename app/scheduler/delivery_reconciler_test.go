package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/campaign-hub/app/services"
	"github.com/amirphl/campaign-hub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(t *testing.T, f *schedulerFixture) *DeliveryReconciler {
	t.Helper()
	r := NewDeliveryReconciler(f.dispatches, f.audits, f.jobs, f.gateway, f.reconciler, f.notifier, nil, f.cfg)
	t.Cleanup(func() { _ = r.logFile.Close() })
	// every planned check is due
	r.now = func() time.Time { return time.Now().UTC().Add(24 * time.Hour) }
	return r
}

func TestDeliveryReconcilerMovesSentToPartiallyFailed(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	hub := &models.HubContent{Title: "Launch"}
	require.NoError(t, f.hubs.Save(ctx, hub))

	recipients := []string{"+821000000001", "+821000000002"}
	d := f.dueDispatch(t, models.ChannelSMS, &hub.ID, recipients)
	f.scheduler.RunOnce(ctx)
	sent := f.reload(t, d.ID)
	require.Equal(t, models.DispatchStatusSent, sent.Status)
	groupID := *sent.ExternalGroupID

	code := "UNREACHABLE"
	f.gateway.StatusFunc = func(ctx context.Context, externalGroupID string, rs []string) ([]services.DeliveryReport, error) {
		assert.Equal(t, groupID, externalGroupID)
		assert.Equal(t, recipients, rs)
		return []services.DeliveryReport{
			{Recipient: rs[0], State: models.RecipientStateDelivered},
			{Recipient: rs[1], State: models.RecipientStateUndelivered, ErrorCode: &code},
		}, nil
	}

	r := newTestReconciler(t, f)
	done := r.ProcessDue(ctx)
	assert.Equal(t, 3, done)

	stored := f.reload(t, d.ID)
	assert.Equal(t, models.DispatchStatusPartiallyFailed, stored.Status)
	assert.Equal(t, models.RecipientStateDelivered, stored.PerRecipientResult[recipients[0]].Status)
	assert.Equal(t, models.RecipientStateUndelivered, stored.PerRecipientResult[recipients[1]].Status)

	for _, j := range f.jobs.All() {
		assert.NotNil(t, j.ExecutedAt)
	}
	assert.Contains(t, f.audits.Actions(d.ID), models.DispatchActionReconciled)

	storedHub, err := f.hubs.ByID(ctx, hub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelStatePartial, storedHub.ChannelStatus["sms"].Status)

	events := f.notifier.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "partially_failed", events[1].Status)
	assert.Equal(t, 1, events[1].FailedCount)

	assert.Zero(t, r.ProcessDue(ctx), "executed jobs are not run again")
}

func TestDeliveryReconcilerRetriesGatewayErrors(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})
	f.scheduler.RunOnce(ctx)

	f.gateway.StatusFunc = func(ctx context.Context, externalGroupID string, rs []string) ([]services.DeliveryReport, error) {
		return nil, errors.New("report endpoint down")
	}

	r := newTestReconciler(t, f)
	assert.Zero(t, r.ProcessDue(ctx))
	for _, j := range f.jobs.All() {
		assert.Nil(t, j.ExecutedAt)
		assert.Equal(t, 1, j.RetryCount)
		require.NotNil(t, j.Error)
	}

	// retries run out after the configured maximum
	r.ProcessDue(ctx)
	r.ProcessDue(ctx)
	assert.Zero(t, r.ProcessDue(ctx))
	for _, j := range f.jobs.All() {
		assert.Equal(t, 3, j.RetryCount)
	}
	assert.Equal(t, models.DispatchStatusSent, f.reload(t, d.ID).Status)
}

func TestDeliveryReconcilerSkipsCanceledDispatch(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	d := f.dueDispatch(t, models.ChannelSMS, nil, []string{"+821000000001"})
	f.scheduler.RunOnce(ctx)

	_, err := f.dispatches.TransitionStatus(ctx, d.ID, models.DispatchStatusSent, models.DispatchStatusDeleted, map[string]any{"deleted_at": time.Now()})
	require.NoError(t, err)

	called := false
	f.gateway.StatusFunc = func(ctx context.Context, externalGroupID string, rs []string) ([]services.DeliveryReport, error) {
		called = true
		return nil, nil
	}

	r := newTestReconciler(t, f)
	assert.Equal(t, 3, r.ProcessDue(ctx))
	assert.False(t, called)
	assert.Equal(t, models.DispatchStatusDeleted, f.reload(t, d.ID).Status)
}

func TestMergeDeliveryReports(t *testing.T) {
	at := time.Now().UTC()
	earlier := at.Add(-time.Hour)
	current := models.RecipientResultMap{
		"+1": {Status: models.RecipientStateAccepted, UpdatedAt: earlier},
		"+2": {Status: models.RecipientStateDelivered, UpdatedAt: earlier},
		"+3": {Status: models.RecipientStateAccepted, UpdatedAt: earlier},
	}

	merged := MergeDeliveryReports(current, []services.DeliveryReport{
		{Recipient: "+1", State: models.RecipientStateFailed},
		{Recipient: "+2", State: models.RecipientStatePending},
		{Recipient: "+3", State: models.RecipientStateAccepted},
		{Recipient: "+9", State: models.RecipientStateDelivered},
	}, at)

	require.Len(t, merged, 3)
	assert.Equal(t, models.RecipientStateFailed, merged["+1"].Status)
	assert.True(t, merged["+1"].UpdatedAt.Equal(at))
	assert.Equal(t, models.RecipientStateDelivered, merged["+2"].Status, "pending never downgrades")
	assert.True(t, merged["+3"].UpdatedAt.Equal(earlier), "unchanged state keeps its timestamp")

	assert.Equal(t, models.RecipientStateAccepted, current["+1"].Status, "input map is not modified")
}
