package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/campaign-hub/app/dto"
	businessflow "github.com/amirphl/campaign-hub/business_flow"
	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	testingutil "github.com/amirphl/campaign-hub/testing"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, dto.APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out dto.APIResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func errorCode(t *testing.T, out dto.APIResponse) string {
	t.Helper()
	m, ok := out.Error.(map[string]any)
	require.True(t, ok, "error detail missing")
	code, _ := m["code"].(string)
	return code
}

func TestShortLinkHandler(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fiber.App, *testingutil.ShortLinkStore) {
		t.Helper()
		store := testingutil.NewShortLinkStore()
		flow := businessflow.NewShortLinkFlow(store, nil, nil, nil, config.ShortLinkConfig{BaseURL: "https://go.example.com"})
		h := NewShortLinkHandler(flow)

		app := fiber.New()
		app.Get("/s/:code", h.Visit)
		app.Post("/api/v1/short-links", h.CreateShortLink)
		app.Get("/api/v1/short-links/:code", h.GetShortLink)
		return app, store
	}

	t.Run("VisitRedirects", func(t *testing.T) {
		app, store := setup(t)
		require.NoError(t, store.Save(ctx, &models.ShortLink{Code: "Go2Web", TargetURL: "https://example.com/landing", UTMParams: models.UTMParams{}}))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/s/Go2Web", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, "https://example.com/landing", resp.Header.Get("Location"))

		link, err := store.ByCode(ctx, "Go2Web")
		require.NoError(t, err)
		assert.Equal(t, int64(1), link.ClickCount)
	})

	t.Run("VisitUnknownCode", func(t *testing.T) {
		app, _ := setup(t)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/s/nope00", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Location"))
	})

	t.Run("VisitExpiredCode", func(t *testing.T) {
		app, store := setup(t)
		past := time.Now().UTC().Add(-time.Hour)
		require.NoError(t, store.Save(ctx, &models.ShortLink{Code: "Old001", TargetURL: "https://example.com/old", UTMParams: models.UTMParams{}, ExpiresAt: &past}))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/s/Old001", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

		link, err := store.ByCode(ctx, "Old001")
		require.NoError(t, err)
		assert.Zero(t, link.ClickCount)
	})

	t.Run("CreateAndFetch", func(t *testing.T) {
		app, _ := setup(t)

		resp, out := doJSON(t, app, http.MethodPost, "/api/v1/short-links", map[string]any{
			"target_url": "https://example.com/promo",
			"utm":        map[string]string{"utm_source": "sms"},
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.True(t, out.Success)

		data, ok := out.Data.(map[string]any)
		require.True(t, ok)
		code, _ := data["code"].(string)
		assert.Len(t, code, 6)

		resp, out = doJSON(t, app, http.MethodGet, "/api/v1/short-links/"+code, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.True(t, out.Success)
	})

	t.Run("CreateValidation", func(t *testing.T) {
		app, _ := setup(t)

		resp, out := doJSON(t, app, http.MethodPost, "/api/v1/short-links", map[string]any{})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, out))

		resp, out = doJSON(t, app, http.MethodPost, "/api/v1/short-links", map[string]any{"target_url": "ftp://example.com"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "TARGET_URL_INVALID", errorCode(t, out))
	})

	t.Run("FetchMissing", func(t *testing.T) {
		app, _ := setup(t)

		resp, out := doJSON(t, app, http.MethodGet, "/api/v1/short-links/zzzzzz", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "SHORT_LINK_NOT_FOUND", errorCode(t, out))
	})
}

func TestEngagementHandler(t *testing.T) {
	flow := businessflow.NewEngagementFlow(testingutil.NewCampaignMetricStore(), testingutil.NewPageViewEventStore(), nil, nil, nil)
	h := NewEngagementHandler(flow)

	app := fiber.New()
	app.Post("/views", h.RecordView)
	app.Post("/form-submissions", h.RecordFormSubmission)
	app.Get("/campaigns/:campaign_id/metrics", h.GetCampaignMetrics)

	for i := 0; i < 4; i++ {
		resp, _ := doJSON(t, app, http.MethodPost, "/views", map[string]any{"campaign_id": "spring", "page_url": "https://hub.example.com/p"})
		require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	}
	resp, _ := doJSON(t, app, http.MethodPost, "/form-submissions", map[string]any{"campaign_id": "spring"})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp, out := doJSON(t, app, http.MethodGet, "/campaigns/spring/metrics", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data, ok := out.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 4, data["views"])
	assert.EqualValues(t, 1, data["form_submissions"])
	assert.InDelta(t, 0.25, data["conversion_rate"], 1e-9)

	resp, out = doJSON(t, app, http.MethodPost, "/views", map[string]any{"page_url": "https://hub.example.com/p"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, out))
}

func TestDispatchHandlerCreateCampaign(t *testing.T) {
	dispatches := testingutil.NewDispatchStore()
	audits := testingutil.NewDispatchAuditLogStore()
	batching := businessflow.NewDispatchBatchingFlow(dispatches, testingutil.NewHubContentStore(), audits, nil)
	h := NewDispatchHandler(batching, businessflow.NewDispatchFlow(dispatches, audits, nil), nil)

	app := fiber.New()
	app.Post("/dispatches", h.CreateCampaign)

	t.Run("Created", func(t *testing.T) {
		resp, out := doJSON(t, app, http.MethodPost, "/dispatches", map[string]any{
			"channel":      "sms",
			"recipients":   []string{"+821000000001", "+821000000002"},
			"message_text": "Spring sale starts today",
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		data, ok := out.Data.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 2, data["total_recipients"])
		list, ok := data["dispatches"].([]any)
		require.True(t, ok)
		require.Len(t, list, 1)
		assert.Equal(t, "draft", list[0].(map[string]any)["status"])
	})

	t.Run("BadPhoneNumber", func(t *testing.T) {
		resp, out := doJSON(t, app, http.MethodPost, "/dispatches", map[string]any{
			"channel":      "sms",
			"recipients":   []string{"call-me"},
			"message_text": "hi",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, out))
	})

	t.Run("UnknownChannel", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/dispatches", map[string]any{
			"channel":      "fax",
			"recipients":   []string{"+821000000001"},
			"message_text": "hi",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("MMSWithoutMedia", func(t *testing.T) {
		resp, _ := doJSON(t, app, http.MethodPost, "/dispatches", map[string]any{
			"channel":      "mms",
			"recipients":   []string{"+821000000001"},
			"message_text": "look",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("MissingHub", func(t *testing.T) {
		resp, out := doJSON(t, app, http.MethodPost, "/dispatches", map[string]any{
			"hub_content_id": 42,
			"channel":        "sms",
			"recipients":     []string{"+821000000001"},
			"message_text":   "hi",
		})
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "HUB_CONTENT_NOT_FOUND", errorCode(t, out))
	})
}

type ctxRecordingRunner struct {
	hasDeadline bool
	err         error
}

func (r *ctxRecordingRunner) RunOnce(ctx context.Context) *dto.RunSchedulerResponse {
	_, r.hasDeadline = ctx.Deadline()
	r.err = ctx.Err()
	return &dto.RunSchedulerResponse{Due: 1, Claimed: 1, Sent: 1}
}

func TestDispatchHandlerRunScheduler(t *testing.T) {
	dispatches := testingutil.NewDispatchStore()
	audits := testingutil.NewDispatchAuditLogStore()
	batching := businessflow.NewDispatchBatchingFlow(dispatches, testingutil.NewHubContentStore(), audits, nil)
	flow := businessflow.NewDispatchFlow(dispatches, audits, nil)

	t.Run("CycleOutlivesRequestDeadline", func(t *testing.T) {
		runner := &ctxRecordingRunner{}
		app := fiber.New()
		app.Post("/scheduler/run", NewDispatchHandler(batching, flow, runner).RunScheduler)

		resp, out := doJSON(t, app, http.MethodPost, "/scheduler/run", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.False(t, runner.hasDeadline, "sends must not inherit the request timeout")
		assert.NoError(t, runner.err)
		data, ok := out.Data.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 1, data["sent"])
	})

	t.Run("Disabled", func(t *testing.T) {
		app := fiber.New()
		app.Post("/scheduler/run", NewDispatchHandler(batching, flow, nil).RunScheduler)

		resp, out := doJSON(t, app, http.MethodPost, "/scheduler/run", nil)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SCHEDULER_DISABLED", errorCode(t, out))
	})
}
