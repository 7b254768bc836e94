package abtests

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/approvals"
	"github.com/creatorhub/backend/internal/auth"
	"github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/youtube"
	"github.com/creatorhub/backend/pkg/response"
	"github.com/creatorhub/backend/pkg/storage"
)

// CreateVariantRequest is one variant in a create-test body.
type CreateVariantRequest struct {
	Name         string `json:"name" binding:"required"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailKey string `json:"thumbnail_key"`
}

// CreateTestRequest is the body for POST /abtests.
type CreateTestRequest struct {
	VideoID                string                 `json:"video_id" binding:"required"`
	TestType               string                 `json:"test_type" binding:"required"`
	DurationHours          int                    `json:"duration_hours" binding:"required,min=1"`
	RotationFrequencyHours int                    `json:"rotation_frequency_hours" binding:"required,min=1"`
	PerformanceThreshold   *float64               `json:"performance_threshold"`
	AutoSelectWinner       *bool                  `json:"auto_select_winner"`
	Variants               []CreateVariantRequest `json:"variants" binding:"required"`
}

// Handler serves the A/B test endpoints.
type Handler struct {
	repo             *Repository
	engine           *Engine
	selector         *WinnerSelector
	yt               *youtube.Client
	store            *storage.S3
	userRepo         *auth.Repository
	defaultThreshold float64
	pdfAuthor        string
	logger           *zap.Logger
}

// NewHandler creates an abtests handler.
func NewHandler(repo *Repository, engine *Engine, selector *WinnerSelector, yt *youtube.Client, store *storage.S3, userRepo *auth.Repository, defaultThreshold float64, pdfAuthor string, logger *zap.Logger) *Handler {
	if defaultThreshold <= 0 {
		defaultThreshold = 0.05
	}
	return &Handler{
		repo: repo, engine: engine, selector: selector, yt: yt, store: store,
		userRepo: userRepo, defaultThreshold: defaultThreshold, pdfAuthor: pdfAuthor, logger: logger,
	}
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

// UploadThumbnail handles POST /abtests/thumbnails: validates and stores a
// variant thumbnail, returning its key for use in a create-test body.
func (h *Handler) UploadThumbnail(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("thumbnail")
	if err != nil {
		response.BadRequest(c, "a thumbnail file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Internal(c, "failed to read thumbnail")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, storage.MaxThumbnailSize+1))
	if err != nil {
		response.Internal(c, "failed to read thumbnail")
		return
	}
	contentType, err := approvals.ValidateThumbnail(data)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	key := storage.ThumbnailKey(user.TeamOwner().String(), fmt.Sprintf("%s-%s", uuid.New().String(), fh.Filename))
	if _, err := h.store.Upload(c.Request.Context(), key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		h.logger.Error("store variant thumbnail", zap.Error(err))
		response.Internal(c, "failed to store thumbnail")
		return
	}
	response.Created(c, gin.H{"thumbnail_key": key})
}

// Create handles POST /abtests: a new draft test with its variants.
func (h *Handler) Create(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	owner := user.TeamOwner()

	var req CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	testType := models.TestType(req.TestType)
	if !testType.Valid() {
		response.BadRequest(c, "invalid test_type")
		return
	}

	variants := make([]models.TestVariant, 0, len(req.Variants))
	seen := make(map[string]bool)
	for _, v := range req.Variants {
		name := strings.ToUpper(strings.TrimSpace(v.Name))
		if seen[name] {
			response.BadRequest(c, "duplicate variant name "+name)
			return
		}
		seen[name] = true
		variants = append(variants, models.TestVariant{
			Name:         name,
			Title:        v.Title,
			Description:  v.Description,
			ThumbnailURL: v.ThumbnailKey,
		})
	}
	if err := ValidateVariants(testType, variants); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	// The video must exist on the connected channel; its current title is the
	// rollback baseline for combined tests.
	video, err := h.yt.Video(c.Request.Context(), owner, req.VideoID)
	if err != nil {
		if errors.Is(err, youtube.ErrVideoNotFound) {
			response.BadRequest(c, "video not found on the connected channel")
			return
		}
		h.logger.Error("verify video", zap.Error(err))
		response.Internal(c, "failed to verify video")
		return
	}

	threshold := h.defaultThreshold
	if req.PerformanceThreshold != nil && *req.PerformanceThreshold > 0 {
		threshold = *req.PerformanceThreshold
	}
	autoSelect := true
	if req.AutoSelectWinner != nil {
		autoSelect = *req.AutoSelectWinner
	}

	test := &models.ABTest{
		CreatorID:              owner,
		CreatedBy:              &user.ID,
		VideoID:                req.VideoID,
		VideoTitle:             video.Snippet.Title,
		TestType:               testType,
		DurationHours:          req.DurationHours,
		RotationFrequencyHours: req.RotationFrequencyHours,
		PerformanceThreshold:   threshold,
		AutoSelectWinner:       autoSelect,
	}
	created, createdVariants, err := h.repo.CreateTest(c.Request.Context(), test, variants)
	if err != nil {
		h.logger.Error("create ab test", zap.Error(err))
		response.Internal(c, "failed to create test")
		return
	}
	if err := h.repo.AppendLog(c.Request.Context(), created.ID, "created", &user.ID, nil); err != nil {
		h.logger.Warn("append created log", zap.Error(err))
	}
	response.Created(c, gin.H{"test": created, "variants": createdVariants})
}

// List handles GET /abtests with optional ?status=.
func (h *Handler) List(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	status := models.TestStatus(c.Query("status"))
	tests, err := h.repo.ListTests(c.Request.Context(), user.TeamOwner(), status)
	if err != nil {
		h.logger.Error("list ab tests", zap.Error(err))
		response.Internal(c, "failed to list tests")
		return
	}
	response.OK(c, gin.H{"tests": tests, "count": len(tests)})
}

// Get handles GET /abtests/:id with variants.
func (h *Handler) Get(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	test, ok := h.loadTeamTest(c, user)
	if !ok {
		return
	}
	variants, err := h.repo.ListVariants(c.Request.Context(), test.ID)
	if err != nil {
		response.Internal(c, "failed to load variants")
		return
	}
	response.OK(c, gin.H{"test": test, "variants": variants})
}

// Status handles GET /abtests/:id/status: progress, time remaining, current
// variant and the live winner verdict.
func (h *Handler) Status(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	test, ok := h.loadTeamTest(c, user)
	if !ok {
		return
	}

	now := time.Now().UTC()
	payload := gin.H{
		"test":     test,
		"progress": test.Progress(now),
	}
	if test.EndDate != nil && test.Status == models.TestActive {
		remaining := test.EndDate.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		payload["time_remaining_seconds"] = int64(remaining.Seconds())
	}
	if current, err := h.repo.CurrentVariant(c.Request.Context(), test.ID); err == nil && current != nil {
		payload["current_variant"] = current
	}
	if test.Status == models.TestActive || test.Status == models.TestPaused {
		if verdict, err := h.selector.Evaluate(c.Request.Context(), test); err == nil {
			payload["verdict"] = verdict
		}
	}
	response.OK(c, payload)
}

// Start handles POST /abtests/:id/start.
func (h *Handler) Start(c *gin.Context) {
	h.lifecycle(c, func(ctx *gin.Context, testID, userID uuid.UUID) (*models.ABTest, error) {
		return h.engine.Start(ctx.Request.Context(), testID, userID)
	})
}

// Pause handles POST /abtests/:id/pause.
func (h *Handler) Pause(c *gin.Context) {
	h.lifecycle(c, func(ctx *gin.Context, testID, userID uuid.UUID) (*models.ABTest, error) {
		return h.engine.Pause(ctx.Request.Context(), testID, userID)
	})
}

// Resume handles POST /abtests/:id/resume.
func (h *Handler) Resume(c *gin.Context) {
	h.lifecycle(c, func(ctx *gin.Context, testID, userID uuid.UUID) (*models.ABTest, error) {
		return h.engine.Resume(ctx.Request.Context(), testID, userID)
	})
}

// Stop handles POST /abtests/:id/stop: early completion with the best
// variant so far recorded as winner.
func (h *Handler) Stop(c *gin.Context) {
	h.lifecycle(c, func(ctx *gin.Context, testID, userID uuid.UUID) (*models.ABTest, error) {
		return h.engine.Stop(ctx.Request.Context(), testID, userID)
	})
}

// SelectWinner handles POST /abtests/:id/winner with {"variant_id": "..."}.
func (h *Handler) SelectWinner(c *gin.Context) {
	var body struct {
		VariantID string `json:"variant_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "variant_id is required")
		return
	}
	variantID, err := uuid.Parse(body.VariantID)
	if err != nil {
		response.BadRequest(c, "invalid variant_id")
		return
	}
	h.lifecycle(c, func(ctx *gin.Context, testID, userID uuid.UUID) (*models.ABTest, error) {
		return h.engine.SelectWinner(ctx.Request.Context(), testID, variantID, userID)
	})
}

func (h *Handler) lifecycle(c *gin.Context, op func(*gin.Context, uuid.UUID, uuid.UUID) (*models.ABTest, error)) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	test, ok := h.loadTeamTest(c, user)
	if !ok {
		return
	}

	updated, err := op(c, test.ID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidTransition):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrStaleStatus):
			response.Conflict(c, "test status changed, reload and retry")
		case errors.Is(err, ErrVariantCount), errors.Is(err, ErrVariantContent):
			response.BadRequest(c, err.Error())
		case errors.Is(err, ErrVariantNotFound):
			response.NotFound(c, "variant not found")
		default:
			h.logger.Error("test lifecycle", zap.Error(err))
			response.Internal(c, "operation failed")
		}
		return
	}
	response.OK(c, gin.H{"test": updated})
}

// Results handles GET /abtests/:id/results: the metric time series.
func (h *Handler) Results(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	test, ok := h.loadTeamTest(c, user)
	if !ok {
		return
	}
	results, err := h.repo.ListResults(c.Request.Context(), test.ID)
	if err != nil {
		response.Internal(c, "failed to load results")
		return
	}
	response.OK(c, gin.H{"results": results, "count": len(results)})
}

// Logs handles GET /abtests/:id/logs: the audit trail.
func (h *Handler) Logs(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	test, ok := h.loadTeamTest(c, user)
	if !ok {
		return
	}
	logs, err := h.repo.ListLogs(c.Request.Context(), test.ID, 200)
	if err != nil {
		response.Internal(c, "failed to load logs")
		return
	}
	response.OK(c, gin.H{"logs": logs, "count": len(logs)})
}

func (h *Handler) loadTeamTest(c *gin.Context, user *models.User) (*models.ABTest, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid test id")
		return nil, false
	}
	test, err := h.repo.GetTest(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrTestNotFound) {
			response.NotFound(c, "test not found")
			return nil, false
		}
		response.Internal(c, "failed to load test")
		return nil, false
	}
	if test.CreatorID != user.TeamOwner() {
		response.NotFound(c, "test not found")
		return nil, false
	}
	return test, true
}
