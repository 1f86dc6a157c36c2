package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/utils"
	"golang.org/x/time/rate"
)

type gatewaySendItem struct {
	Recipient  string `json:"recipient"`
	Body       string `json:"body"`
	CustomerID string `json:"customerId"`
	SendDate   string `json:"sendDate"`
}

type gatewaySendResponseItem struct {
	CustomerID string  `json:"customerId"`
	Mobile     string  `json:"mobile"`
	ServerID   *string `json:"serverId"`
	ErrorCode  *string `json:"errorCode"`
	Desc       *string `json:"description"`
}

type gatewayStatusResponse struct {
	CustomerID            string  `json:"customerId"`
	ServerID              *string `json:"serverId"`
	TotalParts            int64   `json:"totalParts"`
	TotalDeliveredParts   int64   `json:"totalDeliveredParts"`
	TotalUndeliveredParts int64   `json:"totalUnDeliveredParts"`
	TotalUnknownParts     int64   `json:"totalUnKnownParts"`
	Status                string  `json:"status"`
}

// HTTPChannelGateway talks to a payamsms-style HTTP API. Every outbound call
// waits on a shared token bucket so bursts of chunks stay under the provider quota.
type HTTPChannelGateway struct {
	cfg     config.GatewayConfig
	client  *http.Client
	limiter *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewHTTPChannelGateway(cfg config.GatewayConfig) *HTTPChannelGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = utils.DefaultGatewayTimeout
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPChannelGateway{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
	}
}

// trackingID derives the per-recipient customer id from the batch group id
func trackingID(groupID string, index int) string {
	return fmt.Sprintf("%s-%d", groupID, index)
}

func (g *HTTPChannelGateway) endpoint(path string) string {
	return strings.TrimRight(g.cfg.BaseURL, "/") + path
}

// Send posts one chunk. The request tracking id doubles as the external group id.
func (g *HTTPChannelGateway) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if len(req.Recipients) == 0 {
		return nil, fmt.Errorf("no recipients")
	}
	if req.Payload == nil {
		return nil, fmt.Errorf("payload is required")
	}
	token, err := g.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	sendDate := utils.UTCNow().Add(time.Minute).Format("2006-01-02 15:04:05")
	items := make([]gatewaySendItem, 0, len(req.Recipients))
	for i, r := range req.Recipients {
		items = append(items, gatewaySendItem{
			Recipient:  r,
			Body:       req.Payload.Text(),
			CustomerID: trackingID(req.TrackingID, i),
			SendDate:   sendDate,
		})
	}

	var path string
	body := map[string]any{
		"sender": g.cfg.SenderNumber,
		"items":  items,
	}
	switch p := req.Payload.(type) {
	case models.SMSPayload:
		path = "/panel/webservice/sendMultipleWithSrc"
		body["smsItems"] = items
		delete(body, "items")
	case models.MMSPayload:
		path = "/panel/webservice/sendMms"
		body["subject"] = p.Subject
		body["mediaId"] = utils.DerefString(req.MediaHandle)
	case models.KakaoPayload:
		path = "/panel/webservice/sendKakao"
		body["senderKey"] = g.cfg.KakaoSenderKey
		body["templateCode"] = p.TemplateCode
		body["buttons"] = p.Buttons
		body["fallbackToSms"] = p.FallbackToSMS
		if req.MediaHandle != nil {
			body["imageId"] = *req.MediaHandle
		}
	default:
		return nil, fmt.Errorf("unsupported payload %T", req.Payload)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(path), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	var out []gatewaySendResponseItem
	if err := g.do(httpReq, "send", &out); err != nil {
		return nil, err
	}

	byID := make(map[string]gatewaySendResponseItem, len(out))
	for _, it := range out {
		byID[it.CustomerID] = it
	}
	result := &SendResult{ExternalGroupID: req.TrackingID}
	for i, r := range req.Recipients {
		it, ok := byID[trackingID(req.TrackingID, i)]
		rr := RecipientSendResult{Recipient: r, Accepted: true}
		if ok {
			rr.ServerID = it.ServerID
			rr.ErrorCode = it.ErrorCode
			rr.Description = it.Desc
			rr.Accepted = it.ErrorCode == nil || strings.TrimSpace(*it.ErrorCode) == ""
		}
		result.Recipients = append(result.Recipients, rr)
	}
	return result, nil
}

func (g *HTTPChannelGateway) FetchDeliveryStatus(ctx context.Context, externalGroupID string, recipients []string) ([]DeliveryReport, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients provided")
	}
	token, err := g.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(g.endpoint("/report/webservice/status"))
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("byCustomer", "true")
	for i := range recipients {
		q.Add("ids", trackingID(externalGroupID, i))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var out []gatewayStatusResponse
	if err := g.do(req, "status", &out); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(recipients))
	for i := range recipients {
		index[trackingID(externalGroupID, i)] = i
	}
	reports := make([]DeliveryReport, 0, len(out))
	for _, r := range out {
		i, ok := index[r.CustomerID]
		if !ok {
			continue
		}
		status := r.Status
		reports = append(reports, DeliveryReport{
			Recipient:   recipients[i],
			State:       deliveryState(r),
			Description: &status,
		})
	}
	return reports, nil
}

func deliveryState(r gatewayStatusResponse) models.RecipientState {
	switch {
	case r.TotalUndeliveredParts > 0:
		return models.RecipientStateUndelivered
	case r.TotalParts > 0 && r.TotalDeliveredParts >= r.TotalParts:
		return models.RecipientStateDelivered
	case strings.EqualFold(r.Status, "failed"):
		return models.RecipientStateFailed
	default:
		return models.RecipientStateAccepted
	}
}

func (g *HTTPChannelGateway) UploadMedia(ctx context.Context, channel models.ChannelType, filename, contentType string, content []byte) (string, error) {
	token, err := g.GetToken(ctx)
	if err != nil {
		return "", err
	}

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	if err := mw.WriteField("channel", string(channel)); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("/panel/webservice/uploadMedia"), buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if contentType != "" {
		req.Header.Set("X-Media-Type", contentType)
	}

	var out struct {
		MediaID string `json:"mediaId"`
	}
	if err := g.do(req, "upload", &out); err != nil {
		return "", err
	}
	if out.MediaID == "" {
		return "", fmt.Errorf("gateway upload returned empty media id")
	}
	return out.MediaID, nil
}

// GetToken returns a cached access token, fetching a new one when it is missing or stale
func (g *HTTPChannelGateway) GetToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != "" && utils.UTCNow().Before(g.tokenExpiry) {
		return g.token, nil
	}

	q := url.Values{}
	q.Set("systemName", g.cfg.SystemName)
	q.Set("username", g.cfg.Username)
	q.Set("password", g.cfg.Password)
	q.Set("scope", g.cfg.Scope)
	q.Set("grant_type", g.cfg.GrantType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.TokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	if g.cfg.RootAccessToken != "" {
		req.Header.Set("Authorization", "Basic "+g.cfg.RootAccessToken)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := g.do(req, "token", &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("empty access_token")
	}

	ttl := g.cfg.TokenTTL
	if out.ExpiresIn > 0 {
		ttl = time.Duration(out.ExpiresIn) * time.Second
	}
	g.token = out.AccessToken
	g.tokenExpiry = utils.UTCNow().Add(ttl - time.Minute)
	return g.token, nil
}

// do waits for the rate limiter, executes req and decodes a 2xx JSON body into out
func (g *HTTPChannelGateway) do(req *http.Request, op string, out any) error {
	if err := g.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("gateway %s rate limit: %w", op, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		body := strings.TrimSpace(string(bodyBytes))
		if readErr != nil {
			body = fmt.Sprintf("unable to read response body: %v", readErr)
		}
		return fmt.Errorf("gateway %s http status: %d, body: %s", op, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
