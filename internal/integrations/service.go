package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/creatorhub/backend/config"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/pkg/crypto"
)

// ErrReconnectRequired is returned when a refresh fails and the user must re-authorize.
var ErrReconnectRequired = errors.New("token refresh failed, reconnect required")

// OAuth scopes per service.
var serviceScopes = map[models.Service][]string{
	models.ServiceGoogleDrive: {
		"https://www.googleapis.com/auth/drive",
		"https://www.googleapis.com/auth/drive.file",
	},
	models.ServiceYouTube: {
		"https://www.googleapis.com/auth/youtube",
		"https://www.googleapis.com/auth/youtube.upload",
		"https://www.googleapis.com/auth/yt-analytics.readonly",
	},
}

// Service manages Google OAuth flows and token storage for Drive and YouTube.
type Service struct {
	repo   *Repository
	cipher *crypto.TokenCipher
	google config.GoogleConfig
	server config.ServerConfig
	logger *zap.Logger
}

// NewService creates the OAuth integration service.
func NewService(repo *Repository, cipher *crypto.TokenCipher, googleCfg config.GoogleConfig, serverCfg config.ServerConfig, logger *zap.Logger) *Service {
	return &Service{repo: repo, cipher: cipher, google: googleCfg, server: serverCfg, logger: logger}
}

// OAuthConfig builds the oauth2 config for a service.
func (s *Service) OAuthConfig(service models.Service) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.google.ClientID,
		ClientSecret: s.google.ClientSecret,
		RedirectURL:  s.server.RedirectURI(string(service)),
		Scopes:       serviceScopes[service],
		Endpoint:     google.Endpoint,
	}
}

// AuthURL returns the consent URL. Offline access with forced consent so a
// refresh token is always issued.
func (s *Service) AuthURL(service models.Service, state string) string {
	return s.OAuthConfig(service).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades the authorization code for tokens and stores them encrypted.
func (s *Service) Exchange(ctx context.Context, userID uuid.UUID, service models.Service, code string) error {
	tok, err := s.OAuthConfig(service).Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("code exchange: %w", err)
	}

	scopes, _ := tok.Extra("scope").(string)
	if !grantedFor(service, scopes) {
		return fmt.Errorf("%s access was not granted", service)
	}

	encAccess, err := s.cipher.Encrypt(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	encRefresh := ""
	if tok.RefreshToken != "" {
		if encRefresh, err = s.cipher.Encrypt(tok.RefreshToken); err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	return s.repo.Upsert(ctx, userID, service, encAccess, encRefresh, tok.Expiry, scopes)
}

// grantedFor checks the granted scope list mentions the service's API.
func grantedFor(service models.Service, scopes string) bool {
	needle := "youtube"
	if service == models.ServiceGoogleDrive {
		needle = "drive"
	}
	for _, sc := range strings.Fields(scopes) {
		if strings.Contains(sc, needle) {
			return true
		}
	}
	return false
}

// Token returns a valid decrypted access token for the user, refreshing and
// persisting it if expired.
func (s *Service) Token(ctx context.Context, userID uuid.UUID, service models.Service) (*oauth2.Token, error) {
	integ, err := s.repo.Get(ctx, userID, service)
	if err != nil {
		return nil, err
	}

	access, err := s.cipher.Decrypt(integ.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	refresh := ""
	if integ.RefreshToken != "" {
		if refresh, err = s.cipher.Decrypt(integ.RefreshToken); err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       integ.ExpiresAt,
		TokenType:    "Bearer",
	}
	if tok.Valid() {
		return tok, nil
	}

	// Expired: refresh through the oauth2 token source and persist the result.
	refreshed, err := s.OAuthConfig(service).TokenSource(ctx, tok).Token()
	if err != nil {
		s.logger.Warn("token refresh failed",
			zap.String("user_id", userID.String()),
			zap.String("service", string(service)),
			zap.Error(err))
		return nil, ErrReconnectRequired
	}

	encAccess, err := s.cipher.Encrypt(refreshed.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt refreshed token: %w", err)
	}
	if err := s.repo.UpdateAccessToken(ctx, userID, service, encAccess, refreshed.Expiry); err != nil {
		s.logger.Warn("persist refreshed token", zap.Error(err))
	}
	return refreshed, nil
}

// HTTPClient returns an authenticated http client for the user's service.
// Refreshed tokens are persisted through the backing persistingSource.
func (s *Service) HTTPClient(ctx context.Context, userID uuid.UUID, service models.Service) (*http.Client, error) {
	tok, err := s.Token(ctx, userID, service)
	if err != nil {
		return nil, err
	}
	src := &persistingSource{
		svc:     s,
		userID:  userID,
		service: service,
		base:    s.OAuthConfig(service).TokenSource(ctx, tok),
		last:    tok,
	}
	return oauth2.NewClient(ctx, src), nil
}

// Connected reports whether the user has a usable integration.
func (s *Service) Connected(ctx context.Context, userID uuid.UUID, service models.Service) bool {
	_, err := s.repo.Get(ctx, userID, service)
	return err == nil
}

// persistingSource wraps a TokenSource and writes refreshed tokens back to the repository.
type persistingSource struct {
	svc     *Service
	userID  uuid.UUID
	service models.Service
	base    oauth2.TokenSource
	mu      sync.Mutex
	last    *oauth2.Token
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	if p.last == nil || tok.AccessToken != p.last.AccessToken {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		enc, encErr := p.svc.cipher.Encrypt(tok.AccessToken)
		if encErr == nil {
			if err := p.svc.repo.UpdateAccessToken(ctx, p.userID, p.service, enc, tok.Expiry); err != nil {
				p.svc.logger.Warn("persist refreshed token", zap.Error(err))
			}
		}
		p.last = tok
	}
	return tok, nil
}
