package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	testingutil "github.com/amirphl/campaign-hub/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestMediaResolver(t *testing.T) {
	ctx := context.Background()
	content := pngBytes(t, 40, 20)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	t.Run("UploadsOncePerURL", func(t *testing.T) {
		hits.Store(0)
		gateway := NewMockChannelGateway()
		resolver := NewMediaResolver(gateway, testingutil.NewMediaHandleStore(), nil, nil, config.MediaConfig{}, "")
		src := srv.URL + "/banner.png"

		first, err := resolver.Resolve(ctx, models.ChannelMMS, src)
		require.NoError(t, err)
		second, err := resolver.Resolve(ctx, models.ChannelMMS, src)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, gateway.Uploads())
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("ConcurrentResolvesShareUpload", func(t *testing.T) {
		gateway := NewMockChannelGateway()
		resolver := NewMediaResolver(gateway, testingutil.NewMediaHandleStore(), nil, nil, config.MediaConfig{}, "")
		src := srv.URL + "/shared.png"

		var wg sync.WaitGroup
		handles := make(chan string, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h, err := resolver.Resolve(ctx, models.ChannelKakao, src)
				if assert.NoError(t, err) {
					handles <- h
				}
			}()
		}
		wg.Wait()
		close(handles)

		var first string
		for h := range handles {
			if first == "" {
				first = h
			}
			assert.Equal(t, first, h)
		}
		assert.Equal(t, 1, gateway.Uploads())
	})

	t.Run("ChannelsAreCachedSeparately", func(t *testing.T) {
		gateway := NewMockChannelGateway()
		resolver := NewMediaResolver(gateway, testingutil.NewMediaHandleStore(), nil, nil, config.MediaConfig{}, "")
		src := srv.URL + "/both.png"

		_, err := resolver.Resolve(ctx, models.ChannelMMS, src)
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, models.ChannelKakao, src)
		require.NoError(t, err)
		assert.Equal(t, 2, gateway.Uploads())
	})

	t.Run("GatewayHandlePassesThrough", func(t *testing.T) {
		gateway := NewMockChannelGateway()
		resolver := NewMediaResolver(gateway, testingutil.NewMediaHandleStore(), nil, nil, config.MediaConfig{}, "")

		h, err := resolver.Resolve(ctx, models.ChannelMMS, "gw:media-77")
		require.NoError(t, err)
		assert.Equal(t, "media-77", h)
		assert.Zero(t, gateway.Uploads())
	})

	t.Run("FetchErrors", func(t *testing.T) {
		missing := httptest.NewServer(http.NotFoundHandler())
		defer missing.Close()
		gateway := NewMockChannelGateway()
		resolver := NewMediaResolver(gateway, testingutil.NewMediaHandleStore(), nil, nil, config.MediaConfig{}, "")

		_, err := resolver.Resolve(ctx, models.ChannelMMS, missing.URL+"/gone.png")
		assert.Error(t, err)
		_, err = resolver.Resolve(ctx, models.ChannelMMS, "ftp://example.com/x.png")
		assert.Error(t, err)
		_, err = resolver.Resolve(ctx, models.ChannelMMS, " ")
		assert.Error(t, err)
		assert.Zero(t, gateway.Uploads())
	})

	t.Run("OversizedMediaRejected", func(t *testing.T) {
		gateway := NewMockChannelGateway()
		resolver := NewMediaResolver(gateway, testingutil.NewMediaHandleStore(), nil, nil, config.MediaConfig{MaxBytes: 16}, "")

		_, err := resolver.Resolve(ctx, models.ChannelMMS, srv.URL+"/big.png")
		assert.ErrorContains(t, err, "exceeds")
	})
}

func TestPrepareImage(t *testing.T) {
	t.Run("DownscalesLargeImage", func(t *testing.T) {
		out, contentType, resized := prepareImage(pngBytes(t, 400, 200), "image/png", 100, 80)
		require.True(t, resized)
		assert.Equal(t, "image/jpeg", contentType)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 100, cfg.Width)
		assert.Equal(t, 50, cfg.Height)
	})

	t.Run("KeepsSmallImage", func(t *testing.T) {
		in := pngBytes(t, 50, 50)
		out, contentType, resized := prepareImage(in, "image/png", 100, 80)
		assert.False(t, resized)
		assert.Equal(t, "image/png", contentType)
		assert.Equal(t, in, out)
	})

	t.Run("IgnoresNonImage", func(t *testing.T) {
		in := []byte("%PDF-1.4 not an image")
		out, contentType, resized := prepareImage(in, "application/pdf", 100, 80)
		assert.False(t, resized)
		assert.Equal(t, "application/pdf", contentType)
		assert.Equal(t, in, out)
	})
}

func TestSanitizeStoredPath(t *testing.T) {
	base := filepath.Join("uploads", "media")

	p, err := SanitizeStoredPath(base, "uploads/media/2026/10/a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("uploads", "media", "2026", "10", "a.png"), p)

	for _, bad := range []string{"", "/etc/passwd", "uploads/media/../../secret", "other/a.png"} {
		_, err := SanitizeStoredPath(base, bad)
		assert.Error(t, err, bad)
	}
}

func TestWebhookNotifier(t *testing.T) {
	ctx := context.Background()
	event := DispatchOutcomeEvent{DispatchID: 7, Channel: "sms", Status: "sent", OccurredAt: time.Now().UTC()}

	t.Run("SignsBody", func(t *testing.T) {
		var got DispatchOutcomeEvent
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mac := hmac.New(sha256.New, []byte("s3cret"))
			mac.Write(body)
			assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("X-Signature-SHA256"))
			assert.NoError(t, json.Unmarshal(body, &got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		n := NewWebhookNotifier(config.WebhookConfig{URL: srv.URL, Secret: "s3cret"})
		require.NoError(t, n.NotifyDispatchOutcome(ctx, event))
		assert.Equal(t, uint(7), got.DispatchID)
		assert.Equal(t, "sent", got.Status)
	})

	t.Run("NonSuccessStatusIsError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("X-Signature-SHA256"))
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		n := NewWebhookNotifier(config.WebhookConfig{URL: srv.URL})
		assert.ErrorContains(t, n.NotifyDispatchOutcome(ctx, event), "502")
	})
}

func newGatewayServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var tokens atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			tokens.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
			return
		}
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		handle(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &tokens
}

func gatewayConfig(srv *httptest.Server) config.GatewayConfig {
	return config.GatewayConfig{
		BaseURL:       srv.URL,
		TokenURL:      srv.URL + "/oauth/token",
		SenderNumber:  "1000",
		RatePerSecond: 1000,
		Burst:         10,
		TokenTTL:      time.Hour,
	}
}

func TestHTTPChannelGatewaySend(t *testing.T) {
	ctx := context.Background()
	srv, tokens := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/panel/webservice/sendMultipleWithSrc", r.URL.Path)
		var body struct {
			Sender   string            `json:"sender"`
			SMSItems []gatewaySendItem `json:"smsItems"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1000", body.Sender)
		require.Len(t, body.SMSItems, 2)
		assert.Equal(t, "grp-1-0", body.SMSItems[0].CustomerID)

		code := "17"
		desc := "blacklisted"
		_ = json.NewEncoder(w).Encode([]gatewaySendResponseItem{
			{CustomerID: "grp-1-1", Mobile: body.SMSItems[1].Recipient, ErrorCode: &code, Desc: &desc},
		})
	})

	g := NewHTTPChannelGateway(gatewayConfig(srv))
	req := SendRequest{
		TrackingID: "grp-1",
		Channel:    models.ChannelSMS,
		Recipients: []string{"+821000000001", "+821000000002"},
		Payload:    models.SMSPayload{Body: "hello"},
	}

	res, err := g.Send(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "grp-1", res.ExternalGroupID)
	require.Len(t, res.Recipients, 2)
	assert.True(t, res.Recipients[0].Accepted, "recipients missing from the reply count as accepted")
	assert.False(t, res.Recipients[1].Accepted)
	assert.Equal(t, "17", *res.Recipients[1].ErrorCode)

	_, err = g.Send(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokens.Load(), "token is reused until it expires")

	_, err = g.Send(ctx, SendRequest{TrackingID: "grp-2", Payload: models.SMSPayload{Body: "x"}})
	assert.Error(t, err)
}

func TestHTTPChannelGatewayErrors(t *testing.T) {
	srv, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	g := NewHTTPChannelGateway(gatewayConfig(srv))
	_, err := g.Send(context.Background(), SendRequest{
		TrackingID: "grp-3",
		Channel:    models.ChannelSMS,
		Recipients: []string{"+821000000001"},
		Payload:    models.SMSPayload{Body: "hello"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestHTTPChannelGatewayDeliveryStatus(t *testing.T) {
	srv, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/report/webservice/status", r.URL.Path)
		assert.Equal(t, []string{"grp-9-0", "grp-9-1", "grp-9-2"}, r.URL.Query()["ids"])
		_ = json.NewEncoder(w).Encode([]gatewayStatusResponse{
			{CustomerID: "grp-9-0", TotalParts: 1, TotalDeliveredParts: 1, Status: "delivered"},
			{CustomerID: "grp-9-1", TotalParts: 1, TotalUndeliveredParts: 1, Status: "undelivered"},
			{CustomerID: "other-0", TotalParts: 1, TotalDeliveredParts: 1},
		})
	})

	g := NewHTTPChannelGateway(gatewayConfig(srv))
	recipients := []string{"+1", "+2", "+3"}
	reports, err := g.FetchDeliveryStatus(context.Background(), "grp-9", recipients)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "+1", reports[0].Recipient)
	assert.Equal(t, models.RecipientStateDelivered, reports[0].State)
	assert.Equal(t, models.RecipientStateUndelivered, reports[1].State)
}

func TestHTTPChannelGatewayUploadMedia(t *testing.T) {
	srv, _ := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/panel/webservice/uploadMedia", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "mms", r.FormValue("channel"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "banner.png", hdr.Filename)
		_ = json.NewEncoder(w).Encode(map[string]string{"mediaId": "m-1"})
	})

	g := NewHTTPChannelGateway(gatewayConfig(srv))
	h, err := g.UploadMedia(context.Background(), models.ChannelMMS, "banner.png", "image/png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "m-1", h)
}

func TestBloomShortCodeIndex(t *testing.T) {
	ctx := context.Background()
	store := testingutil.NewShortLinkStore()
	for _, code := range []string{"AAAAAA", "BBBBBB", "CCCCCC"} {
		require.NoError(t, store.Save(ctx, &models.ShortLink{Code: code, TargetURL: "https://example.com", UTMParams: models.UTMParams{}}))
	}

	index := NewBloomShortCodeIndex(1000, 0.0001)
	assert.False(t, index.MightContain("AAAAAA"))

	n, err := index.Warm(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, index.MightContain("AAAAAA"))
	assert.True(t, index.MightContain("CCCCCC"))

	index.Add("DDDDDD")
	assert.True(t, index.MightContain("DDDDDD"))
}

func TestVisitorKey(t *testing.T) {
	a := VisitorKey("10.0.0.1", "agent")
	assert.Len(t, a, 64)
	assert.Equal(t, a, VisitorKey("10.0.0.1", "agent"))
	assert.NotEqual(t, a, VisitorKey("10.0.0.2", "agent"))
}
