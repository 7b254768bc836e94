package approvals

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/auth"
	"github.com/creatorhub/backend/internal/files"
	"github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/pkg/queue"
	"github.com/creatorhub/backend/pkg/response"
	"github.com/creatorhub/backend/pkg/storage"
)

// Handler serves the approval workflow endpoints.
type Handler struct {
	repo     *Repository
	fileRepo *files.Repository
	userRepo *auth.Repository
	store    *storage.S3
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewHandler creates an approvals handler.
func NewHandler(repo *Repository, fileRepo *files.Repository, userRepo *auth.Repository, store *storage.S3, q *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, fileRepo: fileRepo, userRepo: userRepo, store: store, queue: q, logger: logger}
}

func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	idVal, ok := c.Get(middleware.ContextUserID)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return nil, false
	}
	id, _ := idVal.(uuid.UUID)
	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Unauthorized(c, "unknown user")
		return nil, false
	}
	return user, true
}

// Submit handles POST /approvals. Multipart form: file_id, title, description,
// tags (comma separated) and an optional thumbnail image.
func (h *Handler) Submit(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	owner := user.TeamOwner()

	fileID, err := uuid.Parse(c.PostForm("file_id"))
	if err != nil {
		response.BadRequest(c, "invalid file_id")
		return
	}
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" || len(title) > 100 {
		response.BadRequest(c, "title is required and must be at most 100 characters")
		return
	}

	file, err := h.fileRepo.GetByID(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, files.ErrNotCached) {
			response.NotFound(c, "file not found, sync drive first")
			return
		}
		response.Internal(c, "failed to load file")
		return
	}
	if file.CreatorID != owner {
		response.NotFound(c, "file not found")
		return
	}
	if !file.IsVideo() {
		response.BadRequest(c, "only video files can be submitted for approval")
		return
	}

	var tags []string
	if raw := c.PostForm("tags"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}

	thumbnailKey, ok := h.storeThumbnail(c, owner)
	if !ok {
		return
	}

	req := &models.ApprovalRequest{
		EditorID:     &user.ID,
		CreatorID:    owner,
		FileID:       fileID,
		Title:        title,
		Description:  c.PostForm("description"),
		Tags:         tags,
		ThumbnailKey: thumbnailKey,
	}
	created, err := h.repo.Create(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("create approval request", zap.Error(err))
		response.Internal(c, "failed to create approval request")
		return
	}
	response.Created(c, gin.H{"request": created})
}

// storeThumbnail reads, validates and uploads the optional thumbnail part.
// Returns the S3 key ("" when no thumbnail was sent) and whether to continue.
func (h *Handler) storeThumbnail(c *gin.Context, owner uuid.UUID) (string, bool) {
	fh, err := c.FormFile("thumbnail")
	if err != nil {
		return "", true // no thumbnail attached
	}
	if fh.Size > storage.MaxThumbnailSize {
		response.BadRequest(c, "thumbnail exceeds 2MB")
		return "", false
	}

	f, err := fh.Open()
	if err != nil {
		response.Internal(c, "failed to read thumbnail")
		return "", false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxThumbnailSize+1))
	if err != nil {
		response.Internal(c, "failed to read thumbnail")
		return "", false
	}

	contentType, err := ValidateThumbnail(data)
	if err != nil {
		response.BadRequest(c, err.Error())
		return "", false
	}

	key := storage.ThumbnailKey(owner.String(), fmt.Sprintf("%s-%s", uuid.New().String(), fh.Filename))
	if _, err := h.store.Upload(c.Request.Context(), key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		h.logger.Error("upload thumbnail", zap.Error(err))
		response.Internal(c, "failed to store thumbnail")
		return "", false
	}
	return key, true
}

// List handles GET /approvals. Reviewers see the whole team filtered by
// ?status=; editors see their own submissions.
func (h *Handler) List(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var (
		reqs []models.ApprovalRequest
		err  error
	)
	if user.CanReview() {
		status := models.ApprovalStatus(c.Query("status"))
		reqs, err = h.repo.ListForTeam(c.Request.Context(), user.TeamOwner(), status)
	} else {
		reqs, err = h.repo.ListForEditor(c.Request.Context(), user.ID)
	}
	if err != nil {
		h.logger.Error("list approvals", zap.Error(err))
		response.Internal(c, "failed to list approval requests")
		return
	}
	response.OK(c, gin.H{"requests": reqs, "count": len(reqs)})
}

// Pending handles GET /approvals/pending for reviewers.
func (h *Handler) Pending(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	reqs, err := h.repo.ListForTeam(c.Request.Context(), user.TeamOwner(), models.ApprovalPending)
	if err != nil {
		h.logger.Error("list pending approvals", zap.Error(err))
		response.Internal(c, "failed to list pending requests")
		return
	}
	response.OK(c, gin.H{"requests": reqs, "count": len(reqs)})
}

// History handles GET /approvals/history: requests that already went through
// review, role-scoped like List.
func (h *Handler) History(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var (
		reqs []models.ApprovalRequest
		err  error
	)
	if user.CanReview() {
		reqs, err = h.repo.ListForTeam(c.Request.Context(), user.TeamOwner(), "")
	} else {
		reqs, err = h.repo.ListForEditor(c.Request.Context(), user.ID)
	}
	if err != nil {
		h.logger.Error("list approval history", zap.Error(err))
		response.Internal(c, "failed to list approval history")
		return
	}
	history := make([]models.ApprovalRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.Status != models.ApprovalPending {
			history = append(history, r)
		}
	}
	response.OK(c, gin.H{"requests": history, "count": len(history)})
}

// Get handles GET /approvals/:id with a presigned thumbnail URL.
func (h *Handler) Get(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	req, ok := h.loadTeamRequest(c, user)
	if !ok {
		return
	}

	payload := gin.H{"request": req}
	if req.ThumbnailKey != "" {
		if u, err := h.store.PresignDownload(c.Request.Context(), req.ThumbnailKey); err == nil {
			payload["thumbnail_url"] = u
		}
	}
	response.OK(c, payload)
}

// Approve handles POST /approvals/:id/approve (creator or manager).
func (h *Handler) Approve(c *gin.Context) {
	h.review(c, true)
}

// Reject handles POST /approvals/:id/reject with a required reason.
func (h *Handler) Reject(c *gin.Context) {
	h.review(c, false)
}

func (h *Handler) review(c *gin.Context, approve bool) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !user.CanReview() {
		response.Forbidden(c, "only creators and managers can review requests")
		return
	}
	req, ok := h.loadTeamRequest(c, user)
	if !ok {
		return
	}

	reason := ""
	if !approve {
		var body struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "a rejection reason is required")
			return
		}
		reason = body.Reason
	}

	updated, err := h.repo.Review(c.Request.Context(), req.ID, user.ID, approve, reason)
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			response.Conflict(c, "request was already reviewed")
			return
		}
		h.logger.Error("review approval", zap.Error(err))
		response.Internal(c, "failed to review request")
		return
	}
	response.OK(c, gin.H{"request": updated})
}

// Upload handles POST /approvals/:id/upload: queues the approved video for
// YouTube upload by the worker.
func (h *Handler) Upload(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if !user.CanReview() {
		response.Forbidden(c, "only creators and managers can trigger uploads")
		return
	}
	req, ok := h.loadTeamRequest(c, user)
	if !ok {
		return
	}
	if !req.CanBeUploaded() {
		response.Conflict(c, "request must be approved before upload")
		return
	}

	payload := queue.UploadJobPayload{RequestID: req.ID, UserID: req.CreatorID}
	if err := h.queue.EnqueueUpload(c.Request.Context(), payload); err != nil {
		h.logger.Error("enqueue upload", zap.Error(err))
		response.Internal(c, "failed to queue upload")
		return
	}
	response.Accepted(c, gin.H{"request_id": req.ID, "queued": true})
}

// loadTeamRequest loads the :id request and checks team visibility. Editors
// only see their own submissions.
func (h *Handler) loadTeamRequest(c *gin.Context, user *models.User) (*models.ApprovalRequest, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return nil, false
	}
	req, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "approval request not found")
			return nil, false
		}
		response.Internal(c, "failed to load request")
		return nil, false
	}
	if req.CreatorID != user.TeamOwner() {
		response.NotFound(c, "approval request not found")
		return nil, false
	}
	if !user.CanReview() && (req.EditorID == nil || *req.EditorID != user.ID) {
		response.NotFound(c, "approval request not found")
		return nil, false
	}
	return req, true
}
