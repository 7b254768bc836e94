package teams

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/auth"
	"github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/pkg/response"
)

// InviteRequest is the body for POST /team/invite.
type InviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required"`
}

// Handler handles team management endpoints.
type Handler struct {
	repo     *Repository
	userRepo *auth.Repository
	logger   *zap.Logger
}

// NewHandler creates a teams handler.
func NewHandler(repo *Repository, userRepo *auth.Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, userRepo: userRepo, logger: logger}
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

// Get handles GET /team: members plus pending invitations.
func (h *Handler) Get(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	owner := user.TeamOwner()

	members, err := h.userRepo.ListTeam(c.Request.Context(), owner)
	if err != nil {
		response.Internal(c, "failed to list team")
		return
	}
	pending, err := h.repo.ListPending(c.Request.Context(), owner)
	if err != nil {
		response.Internal(c, "failed to list invitations")
		return
	}
	response.OK(c, gin.H{"members": members, "pending_invitations": pending})
}

// inviteDenied returns a non-empty refusal message when the inviter's role
// does not allow inviting a member with the requested role.
func inviteDenied(inviter, invitee models.Role) string {
	switch {
	case inviter == models.RoleEditor:
		return "editors cannot invite team members"
	case inviter == models.RoleManager && invitee == models.RoleManager:
		return "only the creator can invite managers"
	}
	return ""
}

// Invite handles POST /team/invite. Creators may invite managers and editors;
// managers may invite editors only.
func (h *Handler) Invite(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	role := models.Role(req.Role)
	if role != models.RoleManager && role != models.RoleEditor {
		response.BadRequest(c, "role must be manager or editor")
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if msg := inviteDenied(user.Role, role); msg != "" {
		response.Forbidden(c, msg)
		return
	}

	if _, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email); err == nil {
		response.BadRequest(c, "email already registered")
		return
	}

	token, err := NewInvitationToken()
	if err != nil {
		response.Internal(c, "failed to generate invitation token")
		return
	}

	inv, err := h.repo.CreateInvitation(c.Request.Context(), user.TeamOwner(), user.ID, req.Email, role, token)
	if err != nil {
		h.logger.Error("create invitation", zap.Error(err))
		response.Internal(c, "failed to create invitation")
		return
	}

	// The token is returned once so the caller can deliver the signup link.
	response.Created(c, gin.H{"invitation": inv, "token": token})
}

// RemoveMember handles DELETE /team/members/:id (creator only).
func (h *Handler) RemoveMember(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if user.Role != models.RoleCreator {
		response.Forbidden(c, "only the creator can remove team members")
		return
	}

	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	if memberID == user.ID {
		response.BadRequest(c, "cannot remove yourself")
		return
	}

	if err := h.userRepo.RemoveTeamMember(c.Request.Context(), user.ID, memberID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			response.NotFound(c, "team member not found")
			return
		}
		response.Internal(c, "failed to remove team member")
		return
	}
	response.NoContent(c)
}
