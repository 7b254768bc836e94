package integrations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorhub/backend/internal/models"
)

// ErrNotConnected is returned when a user has no integration for a service.
var ErrNotConnected = errors.New("integration not connected")

// Repository handles OAuth integration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an integrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const integrationColumns = `id, user_id, service, access_token, refresh_token, expires_at, scopes, created_at, updated_at`

// Get returns the integration for (user, service).
func (r *Repository) Get(ctx context.Context, userID uuid.UUID, service models.Service) (*models.Integration, error) {
	const q = `SELECT ` + integrationColumns + ` FROM integrations WHERE user_id = $1 AND service = $2`
	var i models.Integration
	err := r.pool.QueryRow(ctx, q, userID, string(service)).
		Scan(&i.ID, &i.UserID, &i.Service, &i.AccessToken, &i.RefreshToken, &i.ExpiresAt, &i.Scopes, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotConnected
		}
		return nil, err
	}
	return &i, nil
}

// Upsert stores or replaces the integration tokens for (user, service).
func (r *Repository) Upsert(ctx context.Context, userID uuid.UUID, service models.Service, accessToken, refreshToken string, expiresAt time.Time, scopes string) error {
	const q = `INSERT INTO integrations (user_id, service, access_token, refresh_token, expires_at, scopes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, service) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token <> '' THEN EXCLUDED.refresh_token ELSE integrations.refresh_token END,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, userID, string(service), accessToken, refreshToken, expiresAt, scopes)
	return err
}

// UpdateAccessToken persists a refreshed access token (and expiry).
func (r *Repository) UpdateAccessToken(ctx context.Context, userID uuid.UUID, service models.Service, accessToken string, expiresAt time.Time) error {
	const q = `UPDATE integrations SET access_token = $3, expires_at = $4, updated_at = NOW()
		WHERE user_id = $1 AND service = $2`
	_, err := r.pool.Exec(ctx, q, userID, string(service), accessToken, expiresAt)
	return err
}

// Delete removes the integration for (user, service).
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, service models.Service) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM integrations WHERE user_id = $1 AND service = $2`, userID, string(service))
	return err
}

// Statuses returns the connection state of all services for a user.
func (r *Repository) Statuses(ctx context.Context, userID uuid.UUID) ([]models.IntegrationStatus, error) {
	rows, err := r.pool.Query(ctx, `SELECT service, expires_at, scopes FROM integrations WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	connected := make(map[models.Service]models.IntegrationStatus)
	for rows.Next() {
		var s models.IntegrationStatus
		var expires time.Time
		if err := rows.Scan(&s.Service, &expires, &s.Scopes); err != nil {
			return nil, err
		}
		s.Connected = true
		s.ExpiresAt = &expires
		connected[s.Service] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.IntegrationStatus, 0, 2)
	for _, svc := range []models.Service{models.ServiceGoogleDrive, models.ServiceYouTube} {
		if s, ok := connected[svc]; ok {
			out = append(out, s)
		} else {
			out = append(out, models.IntegrationStatus{Service: svc, Connected: false})
		}
	}
	return out, nil
}
