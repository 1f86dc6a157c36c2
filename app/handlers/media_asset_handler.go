package handlers

import (
	"log"

	"github.com/amirphl/campaign-hub/app/dto"
	businessflow "github.com/amirphl/campaign-hub/business_flow"
	"github.com/gofiber/fiber/v3"
)

// MediaAssetHandlerInterface defines the contract for media asset handlers
type MediaAssetHandlerInterface interface {
	Upload(c fiber.Ctx) error
	Download(c fiber.Ctx) error
}

type MediaAssetHandler struct {
	baseHandler
	flow businessflow.MediaAssetFlow
}

func NewMediaAssetHandler(flow businessflow.MediaAssetFlow) MediaAssetHandlerInterface {
	return &MediaAssetHandler{baseHandler: newBaseHandler(), flow: flow}
}

// Upload stores an image for MMS or Kakao dispatches
// @Summary Upload media asset
// @Description Upload an image (jpg/jpeg/png/gif/webp). The returned media_ref can be used as a dispatch media reference.
// @Tags Media
// @Accept mpfd
// @Produce json
// @Param file formData file true "Image file"
// @Success 201 {object} dto.APIResponse{data=dto.MediaAssetResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 413 {object} dto.APIResponse
// @Router /api/v1/media [post]
func (h *MediaAssetHandler) Upload(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "file is required", "INVALID_FILE", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "invalid file", "INVALID_FILE", err.Error())
	}
	defer file.Close()

	req := dto.UploadMediaAssetRequest{
		OriginalFilename: fileHeader.Filename,
		FileSize:         fileHeader.Size,
		ContentType:      fileHeader.Header.Get("Content-Type"),
		File:             file,
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/media")
	defer cancel()

	result, err := h.flow.UploadMediaAsset(ctx, &req, h.clientMetadata(c))
	if err != nil {
		switch {
		case businessflow.IsMediaFileTooLarge(err):
			return h.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, "File too large", "FILE_TOO_LARGE", err.Error())
		case businessflow.IsMediaFileInvalid(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid file", businessErrorCode(err, "INVALID_FILE"), err.Error())
		}
		log.Println("Media upload failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to upload media", "UPLOAD_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Upload successful", result)
}

// Download returns the stored image bytes
// @Summary Download media asset
// @Tags Media
// @Produce application/octet-stream
// @Param uuid path string true "Media asset UUID"
// @Success 200 {string} string "Binary file"
// @Failure 404 {object} dto.APIResponse
// @Router /api/v1/media/{uuid} [get]
func (h *MediaAssetHandler) Download(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/media/:uuid")
	defer cancel()

	filename, contentType, data, err := h.flow.DownloadMediaAsset(ctx, c.Params("uuid"))
	if err != nil {
		if businessflow.IsMediaAssetNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Media asset not found", "MEDIA_NOT_FOUND", nil)
		}
		log.Println("Media download failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to download media", "DOWNLOAD_FAILED", nil)
	}

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", "inline; filename=\""+filename+"\"")
	return c.Send(data)
}
