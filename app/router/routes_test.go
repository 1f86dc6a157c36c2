package router

import (
	"net/http/httptest"
	"testing"

	"github.com/amirphl/campaign-hub/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSecurityApp(t *testing.T, sec config.SecurityConfig) *fiber.App {
	t.Helper()
	r := NewFiberRouter(Handlers{}, &config.ProductionConfig{Security: sec}).(*FiberRouter)
	app := r.GetApp()
	app.Use(r.securityMiddleware)
	ok := func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Get("/s/:code", ok)
	app.Get("/api/v1/health", ok)
	return app
}

func statusOf(t *testing.T, app *fiber.App, path string) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
	require.NoError(t, err)
	return resp.StatusCode
}

// app.Test requests arrive from 0.0.0.0.
func TestSecurityMiddleware(t *testing.T) {
	t.Run("Blacklist", func(t *testing.T) {
		app := newSecurityApp(t, config.SecurityConfig{IPBlacklist: []string{"0.0.0.0"}})
		assert.Equal(t, fiber.StatusForbidden, statusOf(t, app, "/api/v1/health"))
		assert.Equal(t, fiber.StatusForbidden, statusOf(t, app, "/s/abc123"))
	})

	t.Run("WhitelistSparesRedirects", func(t *testing.T) {
		app := newSecurityApp(t, config.SecurityConfig{IPWhitelist: []string{"10.0.0.1"}})
		assert.Equal(t, fiber.StatusForbidden, statusOf(t, app, "/api/v1/health"))
		assert.Equal(t, fiber.StatusOK, statusOf(t, app, "/s/abc123"))
	})

	t.Run("NoLists", func(t *testing.T) {
		app := newSecurityApp(t, config.SecurityConfig{})
		assert.Equal(t, fiber.StatusOK, statusOf(t, app, "/api/v1/health"))
	})
}

func TestCompressionLevel(t *testing.T) {
	assert.Equal(t, compress.LevelDefault, compressionLevel(0))
	assert.Equal(t, compress.LevelBestSpeed, compressionLevel(1))
	assert.Equal(t, compress.LevelDefault, compressionLevel(6))
	assert.Equal(t, compress.LevelBestCompression, compressionLevel(9))
}
