package businessflow

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/app/services"
	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	testingutil "github.com/amirphl/campaign-hub/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceGenerator returns the given codes in order, repeating the last one
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (g *sequenceGenerator) generate(length int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i], nil
}

func (g *sequenceGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []services.EngagementEvent
}

func (p *recordingPublisher) Publish(event services.EngagementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Events() []services.EngagementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]services.EngagementEvent(nil), p.events...)
}

func seedLink(t *testing.T, store *testingutil.ShortLinkStore, code, target string, expiresAt *time.Time) *models.ShortLink {
	t.Helper()
	link := &models.ShortLink{Code: code, TargetURL: target, UTMParams: models.UTMParams{}, ExpiresAt: expiresAt}
	require.NoError(t, store.Save(context.Background(), link))
	return link
}

func TestCreateShortLink(t *testing.T) {
	ctx := context.Background()
	cfg := config.ShortLinkConfig{BaseURL: "https://go.example.com"}

	t.Run("AllocatesSixCharacterCode", func(t *testing.T) {
		store := testingutil.NewShortLinkStore()
		flow := NewShortLinkFlow(store, nil, nil, nil, cfg)

		resp, err := flow.CreateShortLink(ctx, &dto.CreateShortLinkRequest{
			TargetURL: "example.com/landing",
			UTM:       map[string]string{"utm_campaign": "spring", "utm_source": "sms"},
		}, nil)
		require.NoError(t, err)

		assert.Len(t, resp.Code, 6)
		assert.Equal(t, "https://go.example.com/s/"+resp.Code, resp.ShortURL)
		assert.Equal(t, "https://example.com/landing", resp.TargetURL)
		require.NotNil(t, resp.CampaignID)
		assert.Equal(t, "spring", *resp.CampaignID)
		assert.Zero(t, resp.ClickCount)

		exists, err := store.ExistsByCode(ctx, resp.Code)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("ForcedCollisionRegeneratesOnce", func(t *testing.T) {
		store := testingutil.NewShortLinkStore()
		seedLink(t, store, "AAAAAA", "https://example.com/a", nil)

		gen := &sequenceGenerator{codes: []string{"AAAAAA", "BBBBBB"}}
		flow := NewShortLinkFlow(store, nil, nil, gen.generate, cfg)

		resp, err := flow.CreateShortLink(ctx, &dto.CreateShortLinkRequest{TargetURL: "https://example.com/b"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "BBBBBB", resp.Code)
		assert.Equal(t, 2, gen.Calls())
	})

	t.Run("CollisionExhaustedAfterFiveAttempts", func(t *testing.T) {
		store := testingutil.NewShortLinkStore()
		seedLink(t, store, "AAAAAA", "https://example.com/a", nil)

		gen := &sequenceGenerator{codes: []string{"AAAAAA"}}
		flow := NewShortLinkFlow(store, nil, nil, gen.generate, cfg)

		_, err := flow.CreateShortLink(ctx, &dto.CreateShortLinkRequest{TargetURL: "https://example.com/b"}, nil)
		require.Error(t, err)
		assert.True(t, IsShortCodeCollision(err))
		assert.Equal(t, "SHORT_CODE_COLLISION", businessCode(err))
		assert.Equal(t, 5, gen.Calls())
	})

	t.Run("BloomIndexSkipsLookupForFreshCodes", func(t *testing.T) {
		store := testingutil.NewShortLinkStore()
		seedLink(t, store, "AAAAAA", "https://example.com/a", nil)

		index := services.NewBloomShortCodeIndex(1000, 0.001)
		n, err := index.Warm(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		gen := &sequenceGenerator{codes: []string{"AAAAAA", "CCCCCC"}}
		flow := NewShortLinkFlow(store, index, nil, gen.generate, cfg)

		resp, err := flow.CreateShortLink(ctx, &dto.CreateShortLinkRequest{TargetURL: "https://example.com/c"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "CCCCCC", resp.Code)
		assert.True(t, index.MightContain("CCCCCC"))
	})

	t.Run("RejectsInvalidTarget", func(t *testing.T) {
		flow := NewShortLinkFlow(testingutil.NewShortLinkStore(), nil, nil, nil, cfg)

		_, err := flow.CreateShortLink(ctx, &dto.CreateShortLinkRequest{TargetURL: "ftp://example.com/file"}, nil)
		assert.True(t, IsTargetURLInvalid(err))

		_, err = flow.CreateShortLink(ctx, &dto.CreateShortLinkRequest{TargetURL: "  "}, nil)
		assert.True(t, IsTargetURLInvalid(err))
	})

	t.Run("RejectsPastExpiry", func(t *testing.T) {
		flow := NewShortLinkFlow(testingutil.NewShortLinkStore(), nil, nil, nil, cfg)
		past := time.Now().Add(-time.Hour)

		_, err := flow.CreateShortLink(ctx, &dto.CreateShortLinkRequest{TargetURL: "https://example.com", ExpiresAt: &past}, nil)
		assert.True(t, IsShortLinkExpiryInPast(err))
	})
}

func TestResolveShortLink(t *testing.T) {
	ctx := context.Background()
	cfg := config.ShortLinkConfig{BaseURL: "https://go.example.com"}

	t.Run("CountsClickAndRedirects", func(t *testing.T) {
		store := testingutil.NewShortLinkStore()
		link := seedLink(t, store, "Ab12Cd", "https://example.com/landing", nil)
		publisher := &recordingPublisher{}
		flow := NewShortLinkFlow(store, nil, publisher, nil, cfg)

		target, err := flow.Resolve(ctx, "Ab12Cd", NewClientMetadata("10.0.0.1", "test-agent"))
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/landing", target)

		stored, err := store.ByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.ClickCount)

		events := publisher.Events()
		require.Len(t, events, 1)
		assert.Equal(t, services.EngagementEventLinkClick, events[0].Type)
		assert.Equal(t, "Ab12Cd", events[0].LinkCode)
	})

	t.Run("ExpiredLinkIsNotCounted", func(t *testing.T) {
		store := testingutil.NewShortLinkStore()
		past := time.Now().UTC().Add(-time.Minute)
		link := seedLink(t, store, "Exp001", "https://example.com/old", &past)
		flow := NewShortLinkFlow(store, nil, nil, nil, cfg)

		_, err := flow.Resolve(ctx, "Exp001", nil)
		require.Error(t, err)
		assert.True(t, IsShortLinkExpired(err))
		assert.False(t, IsShortLinkNotFound(err))

		stored, err := store.ByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.ClickCount)
	})

	t.Run("UnknownCodeIsNotFound", func(t *testing.T) {
		flow := NewShortLinkFlow(testingutil.NewShortLinkStore(), nil, nil, nil, cfg)

		_, err := flow.Resolve(ctx, "Zz9999", nil)
		assert.True(t, IsShortLinkNotFound(err))

		_, err = flow.Resolve(ctx, "bad/code", nil)
		assert.True(t, IsShortLinkNotFound(err))
	})

	t.Run("IncrementFailureDoesNotBlockRedirect", func(t *testing.T) {
		store := testingutil.NewShortLinkStore()
		seedLink(t, store, "Fail01", "https://example.com/still-works", nil)
		store.IncrementErr = errors.New("connection reset")
		flow := NewShortLinkFlow(store, nil, nil, nil, cfg)

		target, err := flow.Resolve(ctx, "Fail01", nil)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/still-works", target)
	})

	t.Run("ConcurrentClicksAreAllCounted", func(t *testing.T) {
		store := testingutil.NewShortLinkStore()
		link := seedLink(t, store, "Busy01", "https://example.com", nil)
		flow := NewShortLinkFlow(store, nil, nil, nil, cfg)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = flow.Resolve(ctx, "Busy01", nil)
			}()
		}
		wg.Wait()

		stored, err := store.ByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(20), stored.ClickCount)
	})

	t.Run("AppendsUTMParams", func(t *testing.T) {
		store := testingutil.NewShortLinkStore()
		link := &models.ShortLink{
			Code:      "Utm001",
			TargetURL: "https://example.com/landing?utm_source=kept",
			UTMParams: models.UTMParams{"utm_source": "sms", "utm_campaign": "spring"},
		}
		require.NoError(t, store.Save(ctx, link))
		flow := NewShortLinkFlow(store, nil, nil, nil, cfg)

		target, err := flow.Resolve(ctx, "Utm001", nil)
		require.NoError(t, err)

		u, err := url.Parse(target)
		require.NoError(t, err)
		assert.Equal(t, "kept", u.Query().Get("utm_source"))
		assert.Equal(t, "spring", u.Query().Get("utm_campaign"))
	})
}

func TestRandomCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := RandomCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.True(t, isShortCode(code))
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func businessCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
