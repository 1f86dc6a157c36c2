package businessflow

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/amirphl/campaign-hub/app/dto"
	"github.com/amirphl/campaign-hub/app/services"
	"github.com/amirphl/campaign-hub/config"
	"github.com/amirphl/campaign-hub/models"
	testingutil "github.com/amirphl/campaign-hub/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadRequest(name string, content []byte) *dto.UploadMediaAssetRequest {
	return &dto.UploadMediaAssetRequest{
		OriginalFilename: name,
		FileSize:         int64(len(content)),
		File:             bytes.NewReader(content),
	}
}

func TestMediaAssetFlow(t *testing.T) {
	ctx := context.Background()
	// stored paths are relative to the working directory
	t.Chdir(t.TempDir())

	img := &bytes.Buffer{}
	require.NoError(t, png.Encode(img, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	cfg := config.MediaConfig{StorageDir: "media", MaxBytes: 1 << 20}

	t.Run("UploadDownloadAndResolve", func(t *testing.T) {
		assets := testingutil.NewMultimediaAssetStore()
		flow := NewMediaAssetFlow(assets, cfg)

		resp, err := flow.UploadMediaAsset(ctx, uploadRequest("banner.PNG", img.Bytes()), nil)
		require.NoError(t, err)
		assert.Equal(t, "image/png", resp.MimeType)
		assert.Equal(t, "banner.PNG", resp.OriginalFilename)
		assert.Equal(t, "asset:"+resp.UUID, resp.MediaRef)
		assert.Equal(t, 8, resp.Width)
		assert.Equal(t, 8, resp.Height)

		name, contentType, data, err := flow.DownloadMediaAsset(ctx, resp.UUID)
		require.NoError(t, err)
		assert.Equal(t, "banner.PNG", name)
		assert.Equal(t, "image/png", contentType)
		assert.Equal(t, img.Bytes(), data)

		gateway := services.NewMockChannelGateway()
		resolver := services.NewMediaResolver(gateway, testingutil.NewMediaHandleStore(), assets, nil, cfg, "")
		first, err := resolver.Resolve(ctx, models.ChannelMMS, resp.MediaRef)
		require.NoError(t, err)
		second, err := resolver.Resolve(ctx, models.ChannelMMS, resp.MediaRef)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, gateway.Uploads())
	})

	t.Run("RejectsNonImages", func(t *testing.T) {
		flow := NewMediaAssetFlow(testingutil.NewMultimediaAssetStore(), cfg)

		_, err := flow.UploadMediaAsset(ctx, uploadRequest("clip.mp4", img.Bytes()), nil)
		assert.True(t, IsMediaFileInvalid(err))

		_, err = flow.UploadMediaAsset(ctx, uploadRequest("fake.png", []byte("plain text pretending to be an image")), nil)
		assert.True(t, IsMediaFileInvalid(err))
	})

	t.Run("RejectsOversizedFiles", func(t *testing.T) {
		flow := NewMediaAssetFlow(testingutil.NewMultimediaAssetStore(), config.MediaConfig{StorageDir: "media", MaxBytes: 16})

		_, err := flow.UploadMediaAsset(ctx, uploadRequest("banner.png", img.Bytes()), nil)
		assert.True(t, IsMediaFileTooLarge(err))
	})

	t.Run("UnknownAsset", func(t *testing.T) {
		flow := NewMediaAssetFlow(testingutil.NewMultimediaAssetStore(), cfg)

		_, _, _, err := flow.DownloadMediaAsset(ctx, "not-a-uuid")
		assert.True(t, IsMediaAssetNotFound(err))
		_, _, _, err = flow.DownloadMediaAsset(ctx, "6f1c2f8e-4a1b-4c55-9d0f-0a8f5c1e2b3d")
		assert.True(t, IsMediaAssetNotFound(err))
	})
}
