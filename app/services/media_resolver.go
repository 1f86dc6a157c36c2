package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	mediaRefAssetPrefix   = "asset:"
	mediaRefGatewayPrefix = "gw:"
)

// MediaResolver turns a dispatch media reference into a gateway upload handle
type MediaResolver interface {
	Resolve(ctx context.Context, channel models.ChannelType, mediaRef string) (string, error)
}

// MediaResolverImpl caches handles in Redis (when configured) and in the
// media_handles table, and collapses concurrent uploads of the same source
// into a single gateway call.
type MediaResolverImpl struct {
	gateway    ChannelGateway
	handleRepo repository.MediaHandleRepository
	assetRepo  repository.MultimediaAssetRepository
	rc         *redis.Client
	cfg        config.MediaConfig
	keyPrefix  string
	httpClient *http.Client
	group      singleflight.Group
}

func NewMediaResolver(
	gateway ChannelGateway,
	handleRepo repository.MediaHandleRepository,
	assetRepo repository.MultimediaAssetRepository,
	rc *redis.Client,
	cfg config.MediaConfig,
	keyPrefix string,
) *MediaResolverImpl {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &MediaResolverImpl{
		gateway:    gateway,
		handleRepo: handleRepo,
		assetRepo:  assetRepo,
		rc:         rc,
		cfg:        cfg,
		keyPrefix:  keyPrefix,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (m *MediaResolverImpl) cacheKey(channel models.ChannelType, ref string) string {
	return fmt.Sprintf("%smedia:%s:%s", m.keyPrefix, channel, ref)
}

func (m *MediaResolverImpl) Resolve(ctx context.Context, channel models.ChannelType, mediaRef string) (string, error) {
	ref := strings.TrimSpace(mediaRef)
	if ref == "" {
		return "", fmt.Errorf("empty media reference")
	}
	if strings.HasPrefix(ref, mediaRefGatewayPrefix) {
		return strings.TrimPrefix(ref, mediaRefGatewayPrefix), nil
	}

	key := m.cacheKey(channel, ref)
	if m.rc != nil {
		if handle, err := m.rc.Get(ctx, key).Result(); err == nil && handle != "" {
			return handle, nil
		} else if err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("media resolver: redis get %s failed: %v", key, err)
		}
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		row, err := m.handleRepo.BySource(ctx, ref, channel)
		if err != nil {
			return "", err
		}
		if row != nil {
			m.remember(ctx, key, row.Handle)
			return row.Handle, nil
		}

		content, contentType, filename, err := m.load(ctx, ref)
		if err != nil {
			return "", err
		}
		content, contentType, resized := prepareImage(content, contentType, m.cfg.MaxDimension, m.cfg.JPEGQuality)
		if resized {
			filename = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jpg"
		}

		handle, err := m.gateway.UploadMedia(ctx, channel, filename, contentType, content)
		if err != nil {
			return "", fmt.Errorf("upload media: %w", err)
		}

		saved, err := m.handleRepo.SaveIfAbsent(ctx, &models.MediaHandle{SourceURL: ref, Channel: channel, Handle: handle})
		if err != nil {
			return "", err
		}
		if saved != nil {
			handle = saved.Handle
		}
		m.remember(ctx, key, handle)
		return handle, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *MediaResolverImpl) remember(ctx context.Context, key, handle string) {
	if m.rc == nil {
		return
	}
	if err := m.rc.Set(ctx, key, handle, m.cfg.CacheTTL).Err(); err != nil {
		log.Printf("media resolver: redis set %s failed: %v", key, err)
	}
}

// load reads the media bytes behind an asset:<uuid> or http(s) reference
func (m *MediaResolverImpl) load(ctx context.Context, ref string) ([]byte, string, string, error) {
	switch {
	case strings.HasPrefix(ref, mediaRefAssetPrefix):
		return m.loadAsset(ctx, strings.TrimPrefix(ref, mediaRefAssetPrefix))
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return m.fetch(ctx, ref)
	default:
		return nil, "", "", fmt.Errorf("unsupported media reference %q", ref)
	}
}

func (m *MediaResolverImpl) loadAsset(ctx context.Context, raw string) ([]byte, string, string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, "", "", fmt.Errorf("invalid asset id: %w", err)
	}
	if m.assetRepo == nil {
		return nil, "", "", fmt.Errorf("asset store not configured")
	}
	asset, err := m.assetRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	if asset == nil {
		return nil, "", "", fmt.Errorf("asset %s not found", id)
	}
	p, err := SanitizeStoredPath(m.cfg.StorageDir, asset.StoredPath)
	if err != nil {
		return nil, "", "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, "", "", err
	}
	return data, asset.MimeType, asset.OriginalFilename, nil
}

func (m *MediaResolverImpl) fetch(ctx context.Context, src string) ([]byte, string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", "", err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", "", fmt.Errorf("media fetch http status: %d", resp.StatusCode)
	}

	limit := m.cfg.MaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", "", err
	}
	if int64(len(data)) > limit {
		return nil, "", "", fmt.Errorf("media exceeds %d bytes", limit)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	filename := path.Base(req.URL.Path)
	if filename == "" || filename == "/" || filename == "." {
		filename = "media"
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			filename += exts[0]
		}
	}
	return data, contentType, filename, nil
}

// SanitizeStoredPath keeps asset reads inside the storage directory
func SanitizeStoredPath(baseDir, stored string) (string, error) {
	if stored == "" {
		return "", fmt.Errorf("stored path is empty")
	}
	cleaned := filepath.Clean(filepath.FromSlash(stored))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("absolute path not allowed")
	}
	base := filepath.Clean(filepath.FromSlash(baseDir))
	if !strings.HasPrefix(cleaned, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside allowed directory")
	}
	return cleaned, nil
}
