package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/pkg/response"
	"github.com/creatorhub/backend/pkg/utils"
)

// InvitationStore is the slice of the team repository that invite-based
// registration needs. Declared here so auth does not depend on the teams
// package, which itself depends on auth.
type InvitationStore interface {
	GetPendingByToken(ctx context.Context, token string) (*models.Invitation, error)
	MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error
}

// RegisterRequest is the body for POST /auth/register (creator self-signup).
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
}

// AcceptInviteRequest is the body for POST /auth/register/:token.
type AcceptInviteRequest struct {
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo        *Repository
	invitations InvitationStore
	jwt         *JWTService
	logger      *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, invitations InvitationStore, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, invitations: invitations, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register. Only creators self-register;
// managers and editors join through an invitation token.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if _, err := h.repo.GetByEmail(c.Request.Context(), req.Email); err == nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.CreateCreator(c.Request.Context(), req.Email, hash, req.FullName)
	if err != nil {
		h.logger.Error("create creator", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// AcceptInvite handles POST /auth/register/:token: a manager or editor
// completes registration with the invitation token they were sent.
func (h *Handler) AcceptInvite(c *gin.Context) {
	var req AcceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	inv, err := h.invitations.GetPendingByToken(ctx, c.Param("token"))
	if err != nil {
		if errors.Is(err, models.ErrInvitationNotFound) {
			response.NotFound(c, "invitation not found or already used")
			return
		}
		response.Internal(c, "failed to look up invitation")
		return
	}

	if _, err := h.repo.GetByEmail(ctx, inv.Email); err == nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.CreateTeamMember(ctx, inv.Email, hash, req.FullName, inv.Role, inv.CreatorID, inv.InvitedBy)
	if err != nil {
		h.logger.Error("create team member", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	if err := h.invitations.MarkAccepted(ctx, inv.ID, user.CreatedAt); err != nil {
		h.logger.Warn("mark invitation accepted", zap.Error(err), zap.String("invitation_id", inv.ID.String()))
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if user.RemovedAt != nil {
		response.Unauthorized(c, "account disabled")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}
