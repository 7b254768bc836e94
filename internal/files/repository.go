package files

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorhub/backend/internal/models"
)

// ErrNotCached is returned when a Drive file has not been synced yet.
var ErrNotCached = errors.New("file not cached")

// Repository persists the Drive file metadata cache.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a files repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const fileColumns = "id, file_id, name, mime_type, size, modified_time, web_view_link, creator_id, cached_at"

func scanFile(row pgx.Row) (*models.DriveFile, error) {
	var f models.DriveFile
	err := row.Scan(&f.ID, &f.FileID, &f.Name, &f.MimeType, &f.Size, &f.ModifiedTime, &f.WebViewLink, &f.CreatorID, &f.CachedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetByID loads a cached file by its local UUID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.DriveFile, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+fileColumns+" FROM drive_files WHERE id = $1", id)
	return scanFile(row)
}

// GetByDriveID loads a cached file by its Drive file ID.
func (r *Repository) GetByDriveID(ctx context.Context, fileID string) (*models.DriveFile, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+fileColumns+" FROM drive_files WHERE file_id = $1", fileID)
	return scanFile(row)
}

// List returns a creator's cached files, newest first. An empty mimePrefix
// matches everything; "video/" narrows to videos. search filters by name
// substring, case-insensitive.
func (r *Repository) List(ctx context.Context, creatorID uuid.UUID, mimePrefix, search string) ([]models.DriveFile, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+fileColumns+` FROM drive_files
		 WHERE creator_id = $1 AND mime_type LIKE $2 || '%'
		   AND name ILIKE '%' || $3 || '%'
		 ORDER BY modified_time DESC`,
		creatorID, mimePrefix, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DriveFile
	for rows.Next() {
		var f models.DriveFile
		if err := rows.Scan(&f.ID, &f.FileID, &f.Name, &f.MimeType, &f.Size, &f.ModifiedTime, &f.WebViewLink, &f.CreatorID, &f.CachedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ReplaceAll swaps the creator's entire cache for the given snapshot in one
// transaction, so readers never observe a half-synced listing.
func (r *Repository) ReplaceAll(ctx context.Context, creatorID uuid.UUID, snapshot []models.DriveFile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM drive_files WHERE creator_id = $1", creatorID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, f := range snapshot {
		_, err := tx.Exec(ctx,
			`INSERT INTO drive_files (file_id, name, mime_type, size, modified_time, web_view_link, creator_id, cached_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (file_id) DO UPDATE SET
			   name = EXCLUDED.name,
			   mime_type = EXCLUDED.mime_type,
			   size = EXCLUDED.size,
			   modified_time = EXCLUDED.modified_time,
			   web_view_link = EXCLUDED.web_view_link,
			   cached_at = EXCLUDED.cached_at`,
			f.FileID, f.Name, f.MimeType, f.Size, f.ModifiedTime, f.WebViewLink, creatorID, now)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// LastSyncedAt returns when the creator's cache was last refreshed, or the
// zero time when nothing is cached.
func (r *Repository) LastSyncedAt(ctx context.Context, creatorID uuid.UUID) (time.Time, error) {
	var t *time.Time
	err := r.pool.QueryRow(ctx,
		"SELECT MAX(cached_at) FROM drive_files WHERE creator_id = $1", creatorID).Scan(&t)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, nil
	}
	return *t, nil
}
