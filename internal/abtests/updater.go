package abtests

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/creatorhub/backend/internal/youtube"
	"github.com/creatorhub/backend/pkg/storage"
)

// youtubeUpdater is the production VideoUpdater: titles and descriptions go
// straight to the Data API, thumbnails are streamed out of S3 first.
type youtubeUpdater struct {
	client *youtube.Client
	store  *storage.S3
}

// NewVideoUpdater wraps the YouTube client and thumbnail storage.
func NewVideoUpdater(client *youtube.Client, store *storage.S3) VideoUpdater {
	return &youtubeUpdater{client: client, store: store}
}

func (u *youtubeUpdater) SetTitle(ctx context.Context, userID uuid.UUID, videoID, title string) error {
	return u.client.SetTitle(ctx, userID, videoID, title)
}

func (u *youtubeUpdater) SetDescription(ctx context.Context, userID uuid.UUID, videoID, description string) error {
	return u.client.SetDescription(ctx, userID, videoID, description)
}

func (u *youtubeUpdater) SetThumbnail(ctx context.Context, userID uuid.UUID, videoID, thumbnailKey string) error {
	body, contentType, err := u.store.GetObjectStream(ctx, thumbnailKey)
	if err != nil {
		return fmt.Errorf("fetch thumbnail %s: %w", thumbnailKey, err)
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, storage.MaxThumbnailSize+1))
	if err != nil {
		return fmt.Errorf("read thumbnail %s: %w", thumbnailKey, err)
	}
	if len(data) > storage.MaxThumbnailSize {
		return fmt.Errorf("thumbnail %s exceeds size limit", thumbnailKey)
	}
	return u.client.SetThumbnail(ctx, userID, videoID, data, contentType)
}
