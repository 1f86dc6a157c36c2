package businessflow

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/app/services"
	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	"github.com/amirphl/campaign-hub/repository"
	"github.com/amirphl/campaign-hub/utils"
	"github.com/google/uuid"
)

// MediaAssetFlow stores images that MMS and Kakao dispatches reference as asset:<uuid>
type MediaAssetFlow interface {
	UploadMediaAsset(ctx context.Context, req *dto.UploadMediaAssetRequest, metadata *ClientMetadata) (*dto.MediaAssetResponse, error)
	DownloadMediaAsset(ctx context.Context, assetUUID string) (string, string, []byte, error)
}

type MediaAssetFlowImpl struct {
	assetRepo repository.MultimediaAssetRepository
	cfg       config.MediaConfig
}

func NewMediaAssetFlow(assetRepo repository.MultimediaAssetRepository, cfg config.MediaConfig) MediaAssetFlow {
	if cfg.StorageDir == "" {
		cfg.StorageDir = "data/media"
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	return &MediaAssetFlowImpl{assetRepo: assetRepo, cfg: cfg}
}

// Both channels that carry media only accept still images.
var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func (f *MediaAssetFlowImpl) UploadMediaAsset(ctx context.Context, req *dto.UploadMediaAssetRequest, metadata *ClientMetadata) (*dto.MediaAssetResponse, error) {
	if req == nil || req.File == nil {
		return nil, NewBusinessError("INVALID_FILE", "file is required", ErrMediaFileInvalid)
	}
	if req.FileSize <= 0 {
		return nil, NewBusinessError("INVALID_FILE", "file is empty", ErrMediaFileInvalid)
	}
	if req.FileSize > f.cfg.MaxBytes {
		return nil, NewBusinessErrorf("FILE_TOO_LARGE", "file exceeds %d bytes", ErrMediaFileTooLarge, f.cfg.MaxBytes)
	}

	ext := strings.ToLower(filepath.Ext(req.OriginalFilename))
	if !allowedImageExts[ext] {
		return nil, NewBusinessError("INVALID_FILE_TYPE", "allowed file types: jpg, jpeg, png, gif, webp", ErrMediaFileInvalid)
	}

	storedPath, size, mimeType, err := f.saveToDisk(req.File, ext)
	if err != nil {
		return nil, err
	}

	asset := &models.MultimediaAsset{
		UUID:             uuid.New(),
		OriginalFilename: filepath.Base(req.OriginalFilename),
		StoredPath:       storedPath,
		SizeBytes:        size,
		MimeType:         mimeType,
		Extension:        ext,
	}
	asset.Width, asset.Height = imageDimensions(storedPath)
	if err := f.assetRepo.Save(ctx, asset); err != nil {
		_ = os.Remove(filepath.FromSlash(storedPath))
		return nil, NewBusinessError("MEDIA_UPLOAD_FAILED", "Failed to store media asset", err)
	}

	return &dto.MediaAssetResponse{
		UUID:             asset.UUID.String(),
		MediaRef:         asset.MediaRef(),
		Width:            asset.Width,
		Height:           asset.Height,
		MimeType:         asset.MimeType,
		SizeBytes:        asset.SizeBytes,
		OriginalFilename: asset.OriginalFilename,
		CreatedAt:        asset.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (f *MediaAssetFlowImpl) DownloadMediaAsset(ctx context.Context, assetUUID string) (string, string, []byte, error) {
	id, err := uuid.Parse(strings.TrimSpace(assetUUID))
	if err != nil {
		return "", "", nil, NewBusinessError("INVALID_UUID", "media uuid is invalid", ErrMediaAssetNotFound)
	}
	asset, err := f.assetRepo.ByUUID(ctx, id)
	if err != nil {
		return "", "", nil, err
	}
	if asset == nil {
		return "", "", nil, NewBusinessError("MEDIA_NOT_FOUND", "media asset not found", ErrMediaAssetNotFound)
	}

	p, err := services.SanitizeStoredPath(f.cfg.StorageDir, asset.StoredPath)
	if err != nil {
		return "", "", nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", "", nil, err
	}
	contentType := mime.TypeByExtension(asset.Extension)
	if contentType == "" {
		contentType = asset.MimeType
	}
	return asset.OriginalFilename, contentType, data, nil
}

// saveToDisk sniffs the first bytes, then streams the file to
// <storage>/<yyyy-mm-dd>/<uuid><ext> and enforces the size limit while copying.
func (f *MediaAssetFlowImpl) saveToDisk(reader io.Reader, ext string) (string, int64, string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", 0, "", err
	}
	head = head[:n]

	detected := http.DetectContentType(head)
	if !strings.HasPrefix(detected, "image/") {
		fromExt := mime.TypeByExtension(ext)
		// webp is not sniffed by every Go release
		if detected != "application/octet-stream" || fromExt == "" {
			return "", 0, "", NewBusinessError("INVALID_FILE_TYPE", "file content is not an image", ErrMediaFileInvalid)
		}
		detected = fromExt
	}

	dir := filepath.Join(filepath.FromSlash(f.cfg.StorageDir), utils.UTCNow().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, "", fmt.Errorf("create media dir: %w", err)
	}
	fullPath := filepath.Join(dir, uuid.New().String()+ext)
	dst, err := os.Create(fullPath)
	if err != nil {
		return "", 0, "", err
	}
	defer dst.Close()

	limited := io.LimitReader(io.MultiReader(bytes.NewReader(head), reader), f.cfg.MaxBytes+1)
	written, err := io.Copy(dst, limited)
	if err != nil {
		_ = os.Remove(fullPath)
		return "", 0, "", err
	}
	if written > f.cfg.MaxBytes {
		_ = os.Remove(fullPath)
		return "", 0, "", NewBusinessErrorf("FILE_TOO_LARGE", "file exceeds %d bytes", ErrMediaFileTooLarge, f.cfg.MaxBytes)
	}
	return filepath.ToSlash(fullPath), written, detected, nil
}

// imageDimensions reads only the image header; unknown formats report 0x0
func imageDimensions(storedPath string) (int, int) {
	fh, err := os.Open(filepath.FromSlash(storedPath))
	if err != nil {
		return 0, 0
	}
	defer fh.Close()
	cfg, _, err := image.DecodeConfig(fh)
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
