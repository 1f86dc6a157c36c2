package businessflow

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/amirphl/campaign-hub/models"
	testingutil "github.com/amirphl/campaign-hub/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusReconcilerFlow(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (StatusReconcilerFlow, *testingutil.HubContentStore, *testingutil.BlogPostStore, *models.HubContent) {
		t.Helper()
		hubs := testingutil.NewHubContentStore()
		blogs := testingutil.NewBlogPostStore()
		hub := &models.HubContent{Title: "Autumn Launch: 30% off!"}
		require.NoError(t, hubs.Save(ctx, hub))
		return NewStatusReconcilerFlow(hubs, blogs, nil), hubs, blogs, hub
	}

	t.Run("AttachDraftBlogIsIdempotent", func(t *testing.T) {
		flow, hubs, blogs, hub := setup(t)

		first, err := flow.AttachDraftBlog(ctx, hub.ID)
		require.NoError(t, err)
		assert.True(t, first.Created)

		second, err := flow.AttachDraftBlog(ctx, hub.ID)
		require.NoError(t, err)
		assert.False(t, second.Created)
		assert.Equal(t, first.BlogPostID, second.BlogPostID)
		assert.Equal(t, 1, blogs.Len())

		stored, err := hubs.ByID(ctx, hub.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.BlogPostID)
		assert.Equal(t, first.BlogPostID, *stored.BlogPostID)

		post, err := blogs.ByID(ctx, first.BlogPostID)
		require.NoError(t, err)
		assert.Equal(t, models.BlogPostStatusDraft, post.Status)
		assert.True(t, strings.HasPrefix(post.Slug, "autumn-launch-30-off-"))
	})

	t.Run("ConcurrentAttachKeepsOnePost", func(t *testing.T) {
		flow, _, blogs, hub := setup(t)

		var wg sync.WaitGroup
		ids := make(chan uint, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := flow.AttachDraftBlog(ctx, hub.ID)
				if assert.NoError(t, err) {
					ids <- resp.BlogPostID
				}
			}()
		}
		wg.Wait()
		close(ids)

		var first uint
		for id := range ids {
			if first == 0 {
				first = id
			}
			assert.Equal(t, first, id)
		}
		assert.Equal(t, 1, blogs.Len(), "losing attempts must remove their draft")
	})

	t.Run("AttachToMissingHub", func(t *testing.T) {
		flow, _, _, _ := setup(t)

		_, err := flow.AttachDraftBlog(ctx, 999)
		assert.True(t, IsHubContentNotFound(err))
	})

	t.Run("SyncChannelStatusReplacesOneChannel", func(t *testing.T) {
		flow, hubs, _, hub := setup(t)
		group := "grp-1"

		require.NoError(t, flow.SyncChannelStatus(ctx, hub.ID, models.ChannelSMS, DispatchOutcome{Status: models.DispatchStatusFailed}))
		require.NoError(t, flow.SyncChannelStatus(ctx, hub.ID, models.ChannelKakao, DispatchOutcome{Status: models.DispatchStatusSent, ExternalID: &group}))

		before, _ := hubs.ByID(ctx, hub.ID)
		smsCreated := before.ChannelStatus["sms"].CreatedAt

		require.NoError(t, flow.SyncChannelStatus(ctx, hub.ID, models.ChannelSMS, DispatchOutcome{Status: models.DispatchStatusPartiallyFailed, ExternalID: &group}))

		after, err := hubs.ByID(ctx, hub.ID)
		require.NoError(t, err)
		require.Len(t, after.ChannelStatus, 2)

		sms := after.ChannelStatus["sms"]
		assert.Equal(t, models.ChannelStatePartial, sms.Status)
		require.NotNil(t, sms.ExternalID)
		assert.Equal(t, group, *sms.ExternalID)
		assert.True(t, sms.CreatedAt.Equal(smsCreated), "first write time is kept")

		assert.Equal(t, models.ChannelStateSent, after.ChannelStatus["kakao"].Status)
	})

	t.Run("SyncChannelStatusErrors", func(t *testing.T) {
		flow, _, _, hub := setup(t)

		err := flow.SyncChannelStatus(ctx, 999, models.ChannelSMS, DispatchOutcome{Status: models.DispatchStatusSent})
		assert.True(t, IsHubContentNotFound(err))

		err = flow.SyncChannelStatus(ctx, hub.ID, models.ChannelType("fax"), DispatchOutcome{Status: models.DispatchStatusSent})
		assert.True(t, IsChannelInvalid(err))
	})
}

func TestBlogSlug(t *testing.T) {
	hub := &models.HubContent{Title: "!!!"}
	require.NoError(t, hub.BeforeCreate(nil))

	slug := blogSlug(hub.Title, hub.UUID)
	assert.True(t, strings.HasPrefix(slug, "post-"))
	assert.Len(t, slug, len("post-")+8)
}
