package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorhub/backend/internal/models"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, password_hash, full_name, role, creator_id, invited_by, removed_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.CreatorID, &u.InvitedBy, &u.RemovedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID. Removed team members are not found,
// which revokes their access everywhere a request resolves its user.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND removed_at IS NULL`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// CreateCreator inserts a new creator account.
func (r *Repository) CreateCreator(ctx context.Context, email, passwordHash, fullName string) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, 'creator')
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, fullName))
}

// CreateTeamMember inserts a manager or editor belonging to a creator's team.
func (r *Repository) CreateTeamMember(ctx context.Context, email, passwordHash, fullName string, role models.Role, creatorID, invitedBy uuid.UUID) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name, role, creator_id, invited_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role), creatorID, invitedBy))
}

// ListTeam returns the creator and every member of the creator's team.
func (r *Repository) ListTeam(ctx context.Context, creatorID uuid.UUID) ([]models.UserPublic, error) {
	const q = `SELECT id, email, full_name, role, creator_id, created_at FROM users
		WHERE (id = $1 OR creator_id = $1) AND removed_at IS NULL ORDER BY role, full_name`
	rows, err := r.pool.Query(ctx, q, creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.UserPublic
	for rows.Next() {
		var u models.UserPublic
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.CreatorID, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// RemoveTeamMember flags a manager/editor as removed from the creator's
// team. The row stays so approval requests and tests they authored keep
// their history; the creator account itself cannot be removed this way.
func (r *Repository) RemoveTeamMember(ctx context.Context, creatorID, userID uuid.UUID) error {
	const q = `UPDATE users SET removed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND creator_id = $2 AND removed_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, userID, creatorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
