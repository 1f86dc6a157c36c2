package businessflow

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/url"
	"strings"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/app/services"
	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
	"gorm.io/gorm"
)

// CodeGenerator produces a candidate short code of the given length
type CodeGenerator func(length int) (string, error)

// RandomCode draws length characters uniformly from the short code alphabet
func RandomCode(length int) (string, error) {
	if length <= 0 {
		length = utils.DefaultShortCodeLength
	}
	alphabet := utils.ShortCodeAlphabet
	size := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}

// ShortLinkFlow handles the link shortener business logic
type ShortLinkFlow interface {
	CreateShortLink(ctx context.Context, req *dto.CreateShortLinkRequest, metadata *ClientMetadata) (*dto.ShortLinkResponse, error)
	GetShortLink(ctx context.Context, code string) (*dto.ShortLinkResponse, error)
	Resolve(ctx context.Context, code string, metadata *ClientMetadata) (string, error)
}

// ShortLinkFlowImpl implements the short link business flow
type ShortLinkFlowImpl struct {
	shortLinkRepo repository.ShortLinkRepository
	index         services.ShortCodeIndex
	publisher     services.EngagementPublisher
	generate      CodeGenerator
	cfg           config.ShortLinkConfig
}

// NewShortLinkFlow creates a new short link flow instance. index, publisher
// and generate may be nil.
func NewShortLinkFlow(
	shortLinkRepo repository.ShortLinkRepository,
	index services.ShortCodeIndex,
	publisher services.EngagementPublisher,
	generate CodeGenerator,
	cfg config.ShortLinkConfig,
) ShortLinkFlow {
	if generate == nil {
		generate = RandomCode
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = utils.DefaultShortCodeLength
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = utils.MaxShortCodeAttempts
	}
	return &ShortLinkFlowImpl{
		shortLinkRepo: shortLinkRepo,
		index:         index,
		publisher:     publisher,
		generate:      generate,
		cfg:           cfg,
	}
}

// CreateShortLink allocates a unique code for the target URL
func (f *ShortLinkFlowImpl) CreateShortLink(ctx context.Context, req *dto.CreateShortLinkRequest, metadata *ClientMetadata) (*dto.ShortLinkResponse, error) {
	target, err := normalizeTargetURL(req.TargetURL)
	if err != nil {
		return nil, NewBusinessError("INVALID_TARGET_URL", "Target URL is invalid", err)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(utils.UTCNow()) {
		return nil, NewBusinessError("INVALID_EXPIRY", "Expiry time must be in the future", ErrShortLinkExpiryInPast)
	}

	utm := models.UTMParams{}
	for k, v := range req.UTM {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		utm[k] = strings.TrimSpace(v)
	}

	link := &models.ShortLink{
		TargetURL:  target,
		UTMParams:  utm,
		CampaignID: utm.Campaign(),
		ExpiresAt:  utils.TimeToUTCPtr(req.ExpiresAt),
	}

	if err := f.allocate(ctx, link); err != nil {
		if IsShortCodeCollision(err) {
			return nil, NewBusinessError("SHORT_CODE_COLLISION", "Could not allocate a unique short code", err)
		}
		return nil, NewBusinessError("SHORT_LINK_CREATION_FAILED", "Short link creation failed", err)
	}

	resp := ToShortLinkDTO(link, f.cfg.BaseURL)
	return &resp, nil
}

// allocate tries up to MaxAttempts codes. A code is rejected when the store
// already has it or when the insert loses a race on the unique index.
func (f *ShortLinkFlowImpl) allocate(ctx context.Context, link *models.ShortLink) error {
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		code, err := f.generate(f.cfg.CodeLength)
		if err != nil {
			return fmt.Errorf("generate short code: %w", err)
		}

		if f.index == nil || f.index.MightContain(code) {
			exists, err := f.shortLinkRepo.ExistsByCode(ctx, code)
			if err != nil {
				return err
			}
			if exists {
				log.Printf("short link: code collision on attempt %d/%d", attempt, f.cfg.MaxAttempts)
				continue
			}
		}

		link.Code = code
		if err := f.shortLinkRepo.Save(ctx, link); err != nil {
			if isUniqueViolation(err) {
				log.Printf("short link: insert collision on attempt %d/%d", attempt, f.cfg.MaxAttempts)
				link.ID = 0
				continue
			}
			return err
		}
		if f.index != nil {
			f.index.Add(code)
		}
		return nil
	}
	return ErrShortCodeCollision
}

// GetShortLink returns a link with its click count
func (f *ShortLinkFlowImpl) GetShortLink(ctx context.Context, code string) (*dto.ShortLinkResponse, error) {
	link, err := f.shortLinkRepo.ByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, NewBusinessError("SHORT_LINK_LOOKUP_FAILED", "Failed to lookup short link", err)
	}
	if link == nil {
		return nil, NewBusinessError("SHORT_LINK_NOT_FOUND", "Short link not found", ErrShortLinkNotFound)
	}
	resp := ToShortLinkDTO(link, f.cfg.BaseURL)
	return &resp, nil
}

// Resolve returns the redirect target for code and counts the click.
// Expired links are reported as ErrShortLinkExpired and are never counted.
// A failed click increment is logged and does not fail the redirect.
func (f *ShortLinkFlowImpl) Resolve(ctx context.Context, code string, metadata *ClientMetadata) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || !isShortCode(code) {
		return "", ErrShortLinkNotFound
	}

	link, err := f.shortLinkRepo.ByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", ErrShortLinkNotFound
	}
	if link.IsExpiredAt(utils.UTCNow()) {
		return "", ErrShortLinkExpired
	}

	err = WithStorageRetry(ctx, "short link click increment", func(ctx context.Context) error {
		return f.shortLinkRepo.IncrementClickCount(ctx, link.ID)
	})
	if err != nil {
		log.Printf("short link: click increment for %s dropped: %v", code, err)
	}

	if f.publisher != nil {
		event := services.EngagementEvent{Type: services.EngagementEventLinkClick, LinkCode: code}
		if link.CampaignID != nil {
			event.CampaignID = *link.CampaignID
		}
		if metadata != nil {
			event.IP = metadata.IPAddress
			event.UserAgent = metadata.UserAgent
		}
		if err := f.publisher.Publish(event); err != nil {
			log.Printf("short link: publish click event failed: %v", err)
		}
	}

	return withUTM(link.TargetURL, link.UTMParams), nil
}

// normalizeTargetURL prefixes https:// when no scheme is given and requires a host
func normalizeTargetURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrTargetURLInvalid
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTargetURLInvalid, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrTargetURLInvalid, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrTargetURLInvalid)
	}
	return u.String(), nil
}

// withUTM appends the UTM parameters the target does not already carry
func withUTM(target string, utm models.UTMParams) string {
	if len(utm) == 0 {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	for k, v := range utm {
		if q.Get(k) == "" && v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func isShortCode(code string) bool {
	if len(code) > 32 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(utils.ShortCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key value")
}
