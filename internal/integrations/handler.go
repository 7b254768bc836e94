package integrations

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/pkg/response"
)

const stateCookieMaxAge = 600 // seconds

// Handler handles OAuth integration endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an integrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /integrations: connection status for every service.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	statuses, err := h.svc.repo.Statuses(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list integrations", zap.Error(err))
		response.Internal(c, "failed to load integrations")
		return
	}
	response.OK(c, gin.H{"integrations": statuses})
}

// Connect handles GET /integrations/:service/connect: returns the Google
// consent URL and pins the expected state in a short-lived cookie.
func (h *Handler) Connect(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	service, ok := parseService(c.Param("service"))
	if !ok {
		response.BadRequest(c, "unknown service")
		return
	}

	state, err := newState(userID)
	if err != nil {
		response.Internal(c, "failed to start oauth flow")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie(service), state, stateCookieMaxAge, "/", "", false, true)

	response.OK(c, gin.H{"auth_url": h.svc.AuthURL(service, state)})
}

// Callback handles GET /integrations/:service/callback. Google redirects the
// browser here, so identity comes from the state cookie, not the JWT.
func (h *Handler) Callback(c *gin.Context) {
	service, ok := parseService(c.Param("service"))
	if !ok {
		response.BadRequest(c, "unknown service")
		return
	}
	if errCode := c.Query("error"); errCode != "" {
		response.BadRequest(c, fmt.Sprintf("authorization denied: %s", errCode))
		return
	}

	state := c.Query("state")
	cookieState, err := c.Cookie(stateCookie(service))
	if err != nil || state == "" || state != cookieState {
		response.BadRequest(c, "invalid oauth state")
		return
	}
	c.SetCookie(stateCookie(service), "", -1, "/", "", false, true)

	userID, err := userFromState(state)
	if err != nil {
		response.BadRequest(c, "invalid oauth state")
		return
	}

	code := c.Query("code")
	if code == "" {
		response.BadRequest(c, "missing authorization code")
		return
	}

	if err := h.svc.Exchange(c.Request.Context(), userID, service, code); err != nil {
		h.logger.Error("oauth exchange",
			zap.String("service", string(service)),
			zap.String("user_id", userID.String()),
			zap.Error(err))
		response.BadRequest(c, "authorization failed")
		return
	}

	response.OK(c, gin.H{"service": service, "connected": true})
}

// Disconnect handles DELETE /integrations/:service.
func (h *Handler) Disconnect(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	service, ok := parseService(c.Param("service"))
	if !ok {
		response.BadRequest(c, "unknown service")
		return
	}

	if err := h.svc.repo.Delete(c.Request.Context(), userID, service); err != nil {
		if errors.Is(err, ErrNotConnected) {
			response.NotFound(c, "integration not connected")
			return
		}
		h.logger.Error("disconnect integration", zap.Error(err))
		response.Internal(c, "failed to disconnect")
		return
	}
	response.OK(c, gin.H{"service": service, "connected": false})
}

func parseService(raw string) (models.Service, bool) {
	s := models.Service(raw)
	return s, s.Valid()
}

func stateCookie(service models.Service) string {
	return "oauth_state_" + string(service)
}

// newState embeds the user ID so the callback can attribute the grant without
// a bearer token, plus a random nonce verified against the cookie.
func newState(userID uuid.UUID) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	raw := userID.String() + ":" + base64.RawURLEncoding.EncodeToString(nonce)
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

func userFromState(state string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return uuid.Nil, err
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return uuid.Nil, errors.New("malformed state")
	}
	return uuid.Parse(parts[0])
}
