package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DriveFile caches Google Drive file metadata for a creator's team.
type DriveFile struct {
	ID           uuid.UUID `json:"id"`
	FileID       string    `json:"file_id"` // Drive file ID
	Name         string    `json:"name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	ModifiedTime time.Time `json:"modified_time"`
	WebViewLink  string    `json:"web_view_link,omitempty"`
	CreatorID    uuid.UUID `json:"creator_id"`
	CachedAt     time.Time `json:"cached_at"`
}

// IsVideo reports whether the cached file is a video.
func (f *DriveFile) IsVideo() bool {
	return strings.HasPrefix(f.MimeType, "video/")
}

// SizeDisplay returns a human-readable file size.
func (f *DriveFile) SizeDisplay() string {
	if f.Size <= 0 {
		return "Unknown"
	}
	size := float64(f.Size)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f PB", size)
}
