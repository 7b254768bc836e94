package files

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/auth"
	"github.com/creatorhub/backend/internal/integrations"
	"github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/pkg/response"
)

// Handler serves the Drive file cache endpoints. Team members browse the
// creator's Drive through the creator's stored tokens.
type Handler struct {
	drive    *DriveClient
	repo     *Repository
	userRepo *auth.Repository
	logger   *zap.Logger
}

// NewHandler creates a files handler.
func NewHandler(drive *DriveClient, repo *Repository, userRepo *auth.Repository, logger *zap.Logger) *Handler {
	return &Handler{drive: drive, repo: repo, userRepo: userRepo, logger: logger}
}

func (h *Handler) teamOwner(c *gin.Context) (uuid.UUID, bool) {
	idVal, ok := c.Get(middleware.ContextUserID)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return uuid.Nil, false
	}
	id, _ := idVal.(uuid.UUID)
	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Unauthorized(c, "unknown user")
		return uuid.Nil, false
	}
	return user.TeamOwner(), true
}

// List handles GET /files. ?type=video narrows to video files.
func (h *Handler) List(c *gin.Context) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}

	mimePrefix := ""
	if c.Query("type") == "video" {
		mimePrefix = "video/"
	}

	cached, err := h.repo.List(c.Request.Context(), owner, mimePrefix, c.Query("q"))
	if err != nil {
		h.logger.Error("list drive files", zap.Error(err))
		response.Internal(c, "failed to list files")
		return
	}
	syncedAt, err := h.repo.LastSyncedAt(c.Request.Context(), owner)
	if err != nil {
		h.logger.Error("last synced at", zap.Error(err))
	}

	payload := gin.H{"files": cached, "count": len(cached)}
	if !syncedAt.IsZero() {
		payload["synced_at"] = syncedAt.Format(time.RFC3339)
	}
	response.OK(c, payload)
}

// Sync handles POST /files/sync: re-reads the creator's Drive listing and
// replaces the cache.
func (h *Handler) Sync(c *gin.Context) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}

	remote, err := h.drive.ListAll(c.Request.Context(), owner)
	if err != nil {
		if errors.Is(err, integrations.ErrNotConnected) {
			response.BadRequest(c, "google drive is not connected")
			return
		}
		if errors.Is(err, integrations.ErrReconnectRequired) {
			response.Unauthorized(c, "google drive needs to be reconnected")
			return
		}
		h.logger.Error("drive sync", zap.Error(err))
		response.Internal(c, "drive sync failed")
		return
	}

	snapshot := make([]models.DriveFile, 0, len(remote))
	for i := range remote {
		snapshot = append(snapshot, remote[i].toModel(owner))
	}
	if err := h.repo.ReplaceAll(c.Request.Context(), owner, snapshot); err != nil {
		h.logger.Error("replace file cache", zap.Error(err))
		response.Internal(c, "failed to update file cache")
		return
	}
	response.OK(c, gin.H{"synced": len(snapshot)})
}

// Get handles GET /files/:id by local cache UUID.
func (h *Handler) Get(c *gin.Context) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid file id")
		return
	}

	file, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotCached) {
			response.NotFound(c, "file not found")
			return
		}
		response.Internal(c, "failed to load file")
		return
	}
	if file.CreatorID != owner {
		response.NotFound(c, "file not found")
		return
	}
	response.OK(c, gin.H{"file": file, "size_display": file.SizeDisplay(), "is_video": file.IsVideo()})
}

// Quota handles GET /files/quota.
func (h *Handler) Quota(c *gin.Context) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}
	quota, err := h.drive.StorageQuota(c.Request.Context(), owner)
	if err != nil {
		if errors.Is(err, integrations.ErrNotConnected) {
			response.BadRequest(c, "google drive is not connected")
			return
		}
		h.logger.Error("drive quota", zap.Error(err))
		response.Internal(c, "failed to load quota")
		return
	}
	response.OK(c, gin.H{"quota": quota})
}
