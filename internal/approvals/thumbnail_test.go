package approvals

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorhub/backend/pkg/storage"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 64 {
		for x := 0; x < w; x += 64 {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}))
	return buf.Bytes()
}

func TestValidateThumbnailAcceptsPNG(t *testing.T) {
	ct, err := ValidateThumbnail(encodePNG(t, 1280, 720))
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
}

func TestValidateThumbnailAcceptsJPEG(t *testing.T) {
	ct, err := ValidateThumbnail(encodeJPEG(t, 1920, 1080))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)
}

func TestValidateThumbnailRejectsSmallImage(t *testing.T) {
	_, err := ValidateThumbnail(encodePNG(t, 640, 360))
	assert.ErrorIs(t, err, ErrThumbnailTooSmall)
}

func TestValidateThumbnailRejectsExactlyOnePixelShort(t *testing.T) {
	_, err := ValidateThumbnail(encodePNG(t, 1279, 720))
	assert.ErrorIs(t, err, ErrThumbnailTooSmall)

	_, err = ValidateThumbnail(encodePNG(t, 1280, 719))
	assert.ErrorIs(t, err, ErrThumbnailTooSmall)
}

func TestValidateThumbnailRejectsOversize(t *testing.T) {
	data := make([]byte, storage.MaxThumbnailSize+1)
	_, err := ValidateThumbnail(data)
	assert.ErrorIs(t, err, ErrThumbnailTooLarge)
}

func TestValidateThumbnailRejectsGarbage(t *testing.T) {
	_, err := ValidateThumbnail([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrThumbnailUnreadable)
}
