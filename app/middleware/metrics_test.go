package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRedirectOutcomes(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics("/metrics"))
	app.Get("/s/:code", func(c fiber.Ctx) error {
		if c.Params("code") == "known1" {
			return c.Redirect().Status(fiber.StatusFound).To("https://example.com")
		}
		return c.Status(fiber.StatusNotFound).SendString("not found")
	})
	app.Get("/metrics", func(c fiber.Ctx) error { return c.SendString("ok") })

	redirected := redirectCount(t, "redirected")
	notFound := redirectCount(t, "not_found")

	for _, path := range []string{"/s/known1", "/s/other1", "/s/other2", "/metrics"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, redirected+1, redirectCount(t, "redirected"))
	assert.Equal(t, notFound+2, redirectCount(t, "not_found"))
}

func redirectCount(t *testing.T, outcome string) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, redirects.WithLabelValues(outcome).Write(m))
	return m.GetCounter().GetValue()
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(201))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "other", statusClass(0))
}
