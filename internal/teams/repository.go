package teams

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorhub/backend/internal/models"
)

// ErrInvitationNotFound is returned for unknown or already-used tokens.
var ErrInvitationNotFound = models.ErrInvitationNotFound

// Repository handles team invitation persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a teams repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NewInvitationToken generates a URL-safe random invitation token.
func NewInvitationToken() (string, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateInvitation stores an invitation for a manager/editor to join a creator's team.
func (r *Repository) CreateInvitation(ctx context.Context, creatorID, invitedBy uuid.UUID, email string, role models.Role, token string) (*models.Invitation, error) {
	const q = `INSERT INTO invitations (creator_id, invited_by, email, role, token)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, creator_id, invited_by, email, role, token, accepted, created_at, used_at`
	var inv models.Invitation
	err := r.pool.QueryRow(ctx, q, creatorID, invitedBy, email, string(role), token).
		Scan(&inv.ID, &inv.CreatorID, &inv.InvitedBy, &inv.Email, &inv.Role, &inv.Token, &inv.Accepted, &inv.CreatedAt, &inv.UsedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetPendingByToken returns an unaccepted invitation by its token.
func (r *Repository) GetPendingByToken(ctx context.Context, token string) (*models.Invitation, error) {
	const q = `SELECT id, creator_id, invited_by, email, role, token, accepted, created_at, used_at
		FROM invitations WHERE token = $1 AND accepted = FALSE`
	var inv models.Invitation
	err := r.pool.QueryRow(ctx, q, token).
		Scan(&inv.ID, &inv.CreatorID, &inv.InvitedBy, &inv.Email, &inv.Role, &inv.Token, &inv.Accepted, &inv.CreatedAt, &inv.UsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// MarkAccepted records that the invitation has been used.
func (r *Repository) MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE invitations SET accepted = TRUE, used_at = $2 WHERE id = $1`, id, at)
	return err
}

// ListPending returns open invitations for a creator's team.
func (r *Repository) ListPending(ctx context.Context, creatorID uuid.UUID) ([]models.Invitation, error) {
	const q = `SELECT id, creator_id, invited_by, email, role, token, accepted, created_at, used_at
		FROM invitations WHERE creator_id = $1 AND accepted = FALSE ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Invitation
	for rows.Next() {
		var inv models.Invitation
		if err := rows.Scan(&inv.ID, &inv.CreatorID, &inv.InvitedBy, &inv.Email, &inv.Role, &inv.Token, &inv.Accepted, &inv.CreatedAt, &inv.UsedAt); err != nil {
			return nil, err
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}
