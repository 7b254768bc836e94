package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the review state of a publish request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalUploaded ApprovalStatus = "uploaded"
)

// ApprovalRequest is an editor's request to publish a Drive video to YouTube.
type ApprovalRequest struct {
	ID              uuid.UUID      `json:"id"`
	EditorID        *uuid.UUID     `json:"editor_id,omitempty"`
	CreatorID       uuid.UUID      `json:"creator_id"`
	FileID          uuid.UUID      `json:"file_id"` // references drive_files.id
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Tags            []string       `json:"tags,omitempty"`
	ThumbnailKey    string         `json:"thumbnail_key,omitempty"` // S3 object key
	Status          ApprovalStatus `json:"status"`
	ReviewedBy      *uuid.UUID     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	YouTubeVideoID  string         `json:"youtube_video_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// CanBeReviewed reports whether the request is still awaiting review.
func (r *ApprovalRequest) CanBeReviewed() bool {
	return r.Status == ApprovalPending
}

// CanBeUploaded reports whether the request is approved and not yet uploaded.
func (r *ApprovalRequest) CanBeUploaded() bool {
	return r.Status == ApprovalApproved
}
