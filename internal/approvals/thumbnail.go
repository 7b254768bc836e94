package approvals

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/creatorhub/backend/pkg/storage"
)

// YouTube's minimum custom-thumbnail resolution.
const (
	MinThumbnailWidth  = 1280
	MinThumbnailHeight = 720
)

var (
	ErrThumbnailTooLarge    = fmt.Errorf("thumbnail exceeds %d bytes", storage.MaxThumbnailSize)
	ErrThumbnailBadFormat   = errors.New("thumbnail must be JPEG, PNG or WebP")
	ErrThumbnailTooSmall    = fmt.Errorf("thumbnail must be at least %dx%d", MinThumbnailWidth, MinThumbnailHeight)
	ErrThumbnailUnreadable  = errors.New("thumbnail image could not be decoded")
)

// ValidateThumbnail checks size, format and resolution of an uploaded
// thumbnail. The returned content type is derived from the decoded format,
// not the client-supplied header.
func ValidateThumbnail(data []byte) (contentType string, err error) {
	if len(data) > storage.MaxThumbnailSize {
		return "", ErrThumbnailTooLarge
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", ErrThumbnailUnreadable
	}
	switch format {
	case "jpeg":
		contentType = "image/jpeg"
	case "png":
		contentType = "image/png"
	case "webp":
		contentType = "image/webp"
	default:
		return "", ErrThumbnailBadFormat
	}

	if cfg.Width < MinThumbnailWidth || cfg.Height < MinThumbnailHeight {
		return "", ErrThumbnailTooSmall
	}
	return contentType, nil
}
