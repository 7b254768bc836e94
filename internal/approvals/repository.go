package approvals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorhub/backend/internal/models"
)

var (
	// ErrNotFound means no approval request matches.
	ErrNotFound = errors.New("approval request not found")
	// ErrNotPending means the request was already reviewed.
	ErrNotPending = errors.New("approval request is not pending")
)

// Repository persists approval requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an approvals repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const approvalColumns = `id, editor_id, creator_id, file_id, title, description, tags,
	thumbnail_key, status, reviewed_by, reviewed_at, rejection_reason, youtube_video_id, created_at`

func scanApproval(row pgx.Row) (*models.ApprovalRequest, error) {
	var a models.ApprovalRequest
	err := row.Scan(&a.ID, &a.EditorID, &a.CreatorID, &a.FileID, &a.Title, &a.Description, &a.Tags,
		&a.ThumbnailKey, &a.Status, &a.ReviewedBy, &a.ReviewedAt, &a.RejectionReason, &a.YouTubeVideoID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a pending request and returns it.
func (r *Repository) Create(ctx context.Context, a *models.ApprovalRequest) (*models.ApprovalRequest, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO approval_requests (editor_id, creator_id, file_id, title, description, tags, thumbnail_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+approvalColumns,
		a.EditorID, a.CreatorID, a.FileID, a.Title, a.Description, a.Tags, a.ThumbnailKey)
	return scanApproval(row)
}

// GetByID loads one request.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+approvalColumns+" FROM approval_requests WHERE id = $1", id)
	return scanApproval(row)
}

// ListForTeam returns a team's requests, optionally filtered by status.
func (r *Repository) ListForTeam(ctx context.Context, creatorID uuid.UUID, status models.ApprovalStatus) ([]models.ApprovalRequest, error) {
	query := "SELECT " + approvalColumns + " FROM approval_requests WHERE creator_id = $1"
	args := []interface{}{creatorID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	return r.list(ctx, query, args...)
}

// ListForEditor returns one editor's own requests.
func (r *Repository) ListForEditor(ctx context.Context, editorID uuid.UUID) ([]models.ApprovalRequest, error) {
	return r.list(ctx,
		"SELECT "+approvalColumns+" FROM approval_requests WHERE editor_id = $1 ORDER BY created_at DESC",
		editorID)
}

func (r *Repository) list(ctx context.Context, query string, args ...interface{}) ([]models.ApprovalRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ApprovalRequest
	for rows.Next() {
		var a models.ApprovalRequest
		if err := rows.Scan(&a.ID, &a.EditorID, &a.CreatorID, &a.FileID, &a.Title, &a.Description, &a.Tags,
			&a.ThumbnailKey, &a.Status, &a.ReviewedBy, &a.ReviewedAt, &a.RejectionReason, &a.YouTubeVideoID, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Review transitions a pending request to approved or rejected. The status
// guard in the WHERE clause makes concurrent reviews lose cleanly.
func (r *Repository) Review(ctx context.Context, id, reviewerID uuid.UUID, approve bool, reason string) (*models.ApprovalRequest, error) {
	status := models.ApprovalApproved
	if !approve {
		status = models.ApprovalRejected
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE approval_requests
		 SET status = $1, reviewed_by = $2, reviewed_at = $3, rejection_reason = $4
		 WHERE id = $5 AND status = 'pending'
		 RETURNING `+approvalColumns,
		status, reviewerID, time.Now().UTC(), reason, id)
	a, err := scanApproval(row)
	if errors.Is(err, ErrNotFound) {
		// Either missing or already reviewed; disambiguate for the handler.
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, ErrNotPending
		}
		return nil, ErrNotFound
	}
	return a, err
}

// MarkUploaded records the YouTube video ID after a successful upload.
func (r *Repository) MarkUploaded(ctx context.Context, id uuid.UUID, youtubeVideoID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE approval_requests SET status = 'uploaded', youtube_video_id = $1
		 WHERE id = $2 AND status = 'approved'`,
		youtubeVideoID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// CountByStatus returns per-status request counts for a team, used by the
// dashboard summaries.
func (r *Repository) CountByStatus(ctx context.Context, creatorID uuid.UUID) (map[models.ApprovalStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT status, COUNT(*) FROM approval_requests WHERE creator_id = $1 GROUP BY status", creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.ApprovalStatus]int)
	for rows.Next() {
		var status models.ApprovalStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
