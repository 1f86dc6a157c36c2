package dto

import "io"

// UploadMediaAssetRequest carries a multipart upload from the handler to the flow
type UploadMediaAssetRequest struct {
	OriginalFilename string    `json:"-"`
	FileSize         int64     `json:"-"`
	ContentType      string    `json:"-"`
	File             io.Reader `json:"-"`
}

// MediaAssetResponse describes a stored image. MediaRef is what dispatches reference.
type MediaAssetResponse struct {
	UUID             string `json:"uuid"`
	MediaRef         string `json:"media_ref"`
	MimeType         string `json:"mime_type"`
	SizeBytes        int64  `json:"size_bytes"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	OriginalFilename string `json:"original_filename"`
	CreatedAt        string `json:"created_at"`
}
