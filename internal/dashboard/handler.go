package dashboard

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/abtests"
	"github.com/creatorhub/backend/internal/approvals"
	"github.com/creatorhub/backend/internal/auth"
	"github.com/creatorhub/backend/internal/files"
	"github.com/creatorhub/backend/internal/integrations"
	"github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/pkg/response"
)

const recentFileLimit = 10

// Handler serves the role-specific dashboard summary. Each role sees the
// slice of team state it acts on: editors their own submissions, managers
// the review queue, creators the whole account.
type Handler struct {
	userRepo     *auth.Repository
	approvalRepo *approvals.Repository
	testRepo     *abtests.Repository
	intRepo      *integrations.Repository
	fileRepo     *files.Repository
	logger       *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(userRepo *auth.Repository, approvalRepo *approvals.Repository, testRepo *abtests.Repository, intRepo *integrations.Repository, fileRepo *files.Repository, logger *zap.Logger) *Handler {
	return &Handler{
		userRepo:     userRepo,
		approvalRepo: approvalRepo,
		testRepo:     testRepo,
		intRepo:      intRepo,
		fileRepo:     fileRepo,
		logger:       logger,
	}
}

// Summary handles GET /dashboard.
func (h *Handler) Summary(c *gin.Context) {
	idVal, ok := c.Get(middleware.ContextUserID)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	id, _ := idVal.(uuid.UUID)
	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Unauthorized(c, "unknown user")
		return
	}

	switch user.Role {
	case models.RoleEditor:
		h.editorSummary(c, user)
	case models.RoleManager:
		h.managerSummary(c, user)
	default:
		h.creatorSummary(c, user)
	}
}

func (h *Handler) editorSummary(c *gin.Context, user *models.User) {
	ctx := c.Request.Context()
	requests, err := h.approvalRepo.ListForEditor(ctx, user.ID)
	if err != nil {
		h.logger.Error("dashboard: list editor requests", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	videos, err := h.fileRepo.List(ctx, user.TeamOwner(), "video/", "")
	if err != nil {
		h.logger.Error("dashboard: list files", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	if len(videos) > recentFileLimit {
		videos = videos[:recentFileLimit]
	}
	response.OK(c, gin.H{
		"role":         user.Role,
		"my_requests":  requests,
		"recent_files": videos,
	})
}

func (h *Handler) managerSummary(c *gin.Context, user *models.User) {
	ctx := c.Request.Context()
	owner := user.TeamOwner()
	pending, err := h.approvalRepo.ListForTeam(ctx, owner, models.ApprovalPending)
	if err != nil {
		h.logger.Error("dashboard: list pending approvals", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	approvalCounts, err := h.approvalRepo.CountByStatus(ctx, owner)
	if err != nil {
		h.logger.Error("dashboard: approval counts", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	testCounts, err := h.testRepo.CountByStatus(ctx, owner)
	if err != nil {
		h.logger.Error("dashboard: test counts", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	response.OK(c, gin.H{
		"role":              user.Role,
		"pending_approvals": pending,
		"approval_counts":   approvalCounts,
		"test_counts":       testCounts,
	})
}

func (h *Handler) creatorSummary(c *gin.Context, user *models.User) {
	ctx := c.Request.Context()
	owner := user.TeamOwner()

	team, err := h.userRepo.ListTeam(ctx, owner)
	if err != nil {
		h.logger.Error("dashboard: list team", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	statuses, err := h.intRepo.Statuses(ctx, owner)
	if err != nil {
		h.logger.Error("dashboard: integration statuses", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	activeTests, err := h.testRepo.ListTests(ctx, owner, models.TestActive)
	if err != nil {
		h.logger.Error("dashboard: list active tests", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	approvalCounts, err := h.approvalRepo.CountByStatus(ctx, owner)
	if err != nil {
		h.logger.Error("dashboard: approval counts", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	uploaded, err := h.approvalRepo.ListForTeam(ctx, owner, models.ApprovalUploaded)
	if err != nil {
		h.logger.Error("dashboard: list uploads", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	if len(uploaded) > recentFileLimit {
		uploaded = uploaded[:recentFileLimit]
	}
	response.OK(c, gin.H{
		"role":            user.Role,
		"team_size":       len(team),
		"team":            team,
		"integrations":    statuses,
		"active_tests":    activeTests,
		"approval_counts": approvalCounts,
		"recent_uploads":  uploaded,
	})
}
