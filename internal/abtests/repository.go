package abtests

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorhub/backend/internal/models"
)

var (
	// ErrTestNotFound means no test matches the ID.
	ErrTestNotFound = errors.New("ab test not found")
	// ErrVariantNotFound means no variant matches the ID.
	ErrVariantNotFound = errors.New("test variant not found")
	// ErrStaleStatus means a guarded status update lost to a concurrent change.
	ErrStaleStatus = errors.New("test status changed concurrently")
)

// Repository persists A/B tests, variants, results and logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an abtests repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const testColumns = `id, creator_id, created_by, video_id, video_title, test_type, status,
	start_date, end_date, duration_hours, rotation_frequency_hours, performance_threshold,
	auto_select_winner, winner_variant_id, completed_at, created_at, updated_at`

const variantColumns = `id, test_id, name, thumbnail_url, title, description,
	impressions, clicks, views, ctr, is_winner, applied_at, created_at`

func scanTest(row pgx.Row) (*models.ABTest, error) {
	var t models.ABTest
	err := row.Scan(&t.ID, &t.CreatorID, &t.CreatedBy, &t.VideoID, &t.VideoTitle, &t.TestType, &t.Status,
		&t.StartDate, &t.EndDate, &t.DurationHours, &t.RotationFrequencyHours, &t.PerformanceThreshold,
		&t.AutoSelectWinner, &t.WinnerVariantID, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanVariantRows(rows pgx.Rows) ([]models.TestVariant, error) {
	defer rows.Close()
	var out []models.TestVariant
	for rows.Next() {
		var v models.TestVariant
		if err := rows.Scan(&v.ID, &v.TestID, &v.Name, &v.ThumbnailURL, &v.Title, &v.Description,
			&v.Impressions, &v.Clicks, &v.Views, &v.CTR, &v.IsWinner, &v.AppliedAt, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CreateTest inserts a draft test with its variants in one transaction.
func (r *Repository) CreateTest(ctx context.Context, t *models.ABTest, variants []models.TestVariant) (*models.ABTest, []models.TestVariant, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO ab_tests (creator_id, created_by, video_id, video_title, test_type,
		   duration_hours, rotation_frequency_hours, performance_threshold, auto_select_winner)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+testColumns,
		t.CreatorID, t.CreatedBy, t.VideoID, t.VideoTitle, t.TestType,
		t.DurationHours, t.RotationFrequencyHours, t.PerformanceThreshold, t.AutoSelectWinner)
	created, err := scanTest(row)
	if err != nil {
		return nil, nil, err
	}

	out := make([]models.TestVariant, 0, len(variants))
	for _, v := range variants {
		row := tx.QueryRow(ctx,
			`INSERT INTO test_variants (test_id, name, thumbnail_url, title, description)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+variantColumns,
			created.ID, v.Name, v.ThumbnailURL, v.Title, v.Description)
		var nv models.TestVariant
		if err := row.Scan(&nv.ID, &nv.TestID, &nv.Name, &nv.ThumbnailURL, &nv.Title, &nv.Description,
			&nv.Impressions, &nv.Clicks, &nv.Views, &nv.CTR, &nv.IsWinner, &nv.AppliedAt, &nv.CreatedAt); err != nil {
			return nil, nil, err
		}
		out = append(out, nv)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return created, out, nil
}

// GetTest loads one test.
func (r *Repository) GetTest(ctx context.Context, id uuid.UUID) (*models.ABTest, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+testColumns+" FROM ab_tests WHERE id = $1", id)
	return scanTest(row)
}

// ListTests returns a team's tests, optionally filtered by status.
func (r *Repository) ListTests(ctx context.Context, creatorID uuid.UUID, status models.TestStatus) ([]models.ABTest, error) {
	query := "SELECT " + testColumns + " FROM ab_tests WHERE creator_id = $1"
	args := []interface{}{creatorID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ABTest
	for rows.Next() {
		var t models.ABTest
		if err := rows.Scan(&t.ID, &t.CreatorID, &t.CreatedBy, &t.VideoID, &t.VideoTitle, &t.TestType, &t.Status,
			&t.StartDate, &t.EndDate, &t.DurationHours, &t.RotationFrequencyHours, &t.PerformanceThreshold,
			&t.AutoSelectWinner, &t.WinnerVariantID, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListActiveTests returns every active test across all teams, for the worker pacer.
func (r *Repository) ListActiveTests(ctx context.Context) ([]models.ABTest, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+testColumns+" FROM ab_tests WHERE status = 'active'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ABTest
	for rows.Next() {
		var t models.ABTest
		if err := rows.Scan(&t.ID, &t.CreatorID, &t.CreatedBy, &t.VideoID, &t.VideoTitle, &t.TestType, &t.Status,
			&t.StartDate, &t.EndDate, &t.DurationHours, &t.RotationFrequencyHours, &t.PerformanceThreshold,
			&t.AutoSelectWinner, &t.WinnerVariantID, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListVariants returns a test's variants in name order ("A", "B", "C").
func (r *Repository) ListVariants(ctx context.Context, testID uuid.UUID) ([]models.TestVariant, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+variantColumns+" FROM test_variants WHERE test_id = $1 ORDER BY name", testID)
	if err != nil {
		return nil, err
	}
	return scanVariantRows(rows)
}

// GetVariant loads one variant.
func (r *Repository) GetVariant(ctx context.Context, id uuid.UUID) (*models.TestVariant, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+variantColumns+" FROM test_variants WHERE id = $1", id)
	var v models.TestVariant
	err := row.Scan(&v.ID, &v.TestID, &v.Name, &v.ThumbnailURL, &v.Title, &v.Description,
		&v.Impressions, &v.Clicks, &v.Views, &v.CTR, &v.IsWinner, &v.AppliedAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// StartTest moves a draft test to active and pins its schedule. The status
// guard makes a concurrent double-start fail with ErrStaleStatus.
func (r *Repository) StartTest(ctx context.Context, id uuid.UUID, start, end time.Time) (*models.ABTest, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE ab_tests SET status = 'active', start_date = $1, end_date = $2, updated_at = NOW()
		 WHERE id = $3 AND status = 'draft'
		 RETURNING `+testColumns,
		start, end, id)
	t, err := scanTest(row)
	if errors.Is(err, ErrTestNotFound) {
		return nil, ErrStaleStatus
	}
	return t, err
}

// SetStatus performs a guarded pause/resume transition.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, from, to models.TestStatus) (*models.ABTest, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE ab_tests SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3
		 RETURNING `+testColumns,
		to, id, from)
	t, err := scanTest(row)
	if errors.Is(err, ErrTestNotFound) {
		return nil, ErrStaleStatus
	}
	return t, err
}

// CompleteTest atomically completes a test: status, winner and completion time
// land in one UPDATE so the winner_iff_completed constraint always holds, and
// the winning variant is flagged in the same transaction.
func (r *Repository) CompleteTest(ctx context.Context, id, winnerID uuid.UUID, completedAt time.Time) (*models.ABTest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE ab_tests
		 SET status = 'completed', winner_variant_id = $1, completed_at = $2, updated_at = NOW()
		 WHERE id = $3 AND status IN ('active', 'paused')
		 RETURNING `+testColumns,
		winnerID, completedAt, id)
	t, err := scanTest(row)
	if errors.Is(err, ErrTestNotFound) {
		return nil, ErrStaleStatus
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		"UPDATE test_variants SET is_winner = TRUE WHERE id = $1 AND test_id = $2", winnerID, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	t.Status = models.TestCompleted
	return t, nil
}

// MarkVariantApplied records that a variant is now live on the video.
func (r *Repository) MarkVariantApplied(ctx context.Context, variantID uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, "UPDATE test_variants SET applied_at = $1 WHERE id = $2", at, variantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}

// CurrentVariant returns the most recently applied variant, or nil when no
// rotation has happened yet.
func (r *Repository) CurrentVariant(ctx context.Context, testID uuid.UUID) (*models.TestVariant, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+variantColumns+` FROM test_variants
		 WHERE test_id = $1 AND applied_at IS NOT NULL
		 ORDER BY applied_at DESC LIMIT 1`, testID)
	var v models.TestVariant
	err := row.Scan(&v.ID, &v.TestID, &v.Name, &v.ThumbnailURL, &v.Title, &v.Description,
		&v.Impressions, &v.Clicks, &v.Views, &v.CTR, &v.IsWinner, &v.AppliedAt, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVariantMetrics overwrites a variant's cumulative counters.
func (r *Repository) UpdateVariantMetrics(ctx context.Context, variantID uuid.UUID, impressions, clicks, views int64, ctr float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_variants SET impressions = $1, clicks = $2, views = $3, ctr = $4 WHERE id = $5`,
		impressions, clicks, views, ctr, variantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}

// AppendResult records one time-series metric point.
func (r *Repository) AppendResult(ctx context.Context, res models.TestResult) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO test_results (test_id, variant_id, metric_type, value, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		res.TestID, res.VariantID, res.MetricType, res.Value, res.RecordedAt)
	return err
}

// ListResults returns a test's time series ordered by time.
func (r *Repository) ListResults(ctx context.Context, testID uuid.UUID) ([]models.TestResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, variant_id, metric_type, value, recorded_at
		 FROM test_results WHERE test_id = $1 ORDER BY recorded_at`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TestResult
	for rows.Next() {
		var res models.TestResult
		if err := rows.Scan(&res.ID, &res.TestID, &res.VariantID, &res.MetricType, &res.Value, &res.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// AppendLog records an audit entry. System actions pass a nil userID.
func (r *Repository) AppendLog(ctx context.Context, testID uuid.UUID, action string, userID *uuid.UUID, details interface{}) error {
	raw := json.RawMessage("{}")
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		raw = b
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO test_logs (test_id, action, user_id, details) VALUES ($1, $2, $3, $4)`,
		testID, action, userID, raw)
	return err
}

// ListLogs returns a test's audit trail, newest first.
func (r *Repository) ListLogs(ctx context.Context, testID uuid.UUID, limit int) ([]models.TestLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, action, user_id, details, timestamp
		 FROM test_logs WHERE test_id = $1 ORDER BY timestamp DESC LIMIT $2`, testID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TestLog
	for rows.Next() {
		var l models.TestLog
		if err := rows.Scan(&l.ID, &l.TestID, &l.Action, &l.UserID, &l.Details, &l.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CountByStatus returns per-status test counts for a team.
func (r *Repository) CountByStatus(ctx context.Context, creatorID uuid.UUID) (map[models.TestStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT status, COUNT(*) FROM ab_tests WHERE creator_id = $1 GROUP BY status", creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.TestStatus]int)
	for rows.Next() {
		var status models.TestStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
