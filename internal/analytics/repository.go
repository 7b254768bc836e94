package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorhub/backend/internal/models"
)

// ErrCompetitorNotFound means no tracked competitor matches.
var ErrCompetitorNotFound = errors.New("competitor channel not found")

// Repository persists analytics caches, competitors, SEO analyses and
// posting recommendations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertPoints caches a batch of per-day video metrics, overwriting stale
// values for the same (video, metric, day).
func (r *Repository) UpsertPoints(ctx context.Context, points []models.AnalyticsPoint) error {
	now := time.Now().UTC()
	for _, p := range points {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO analytics_cache (video_id, metric_type, value, date, cached_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (video_id, metric_type, date)
			 DO UPDATE SET value = EXCLUDED.value, cached_at = EXCLUDED.cached_at`,
			p.VideoID, p.MetricType, p.Value, p.Date, now)
		if err != nil {
			return err
		}
	}
	return nil
}

// Points returns cached metric values for a video in [start, end], ordered by
// date then metric for stable export output.
func (r *Repository) Points(ctx context.Context, videoID string, start, end time.Time) ([]models.AnalyticsPoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, video_id, metric_type, value, date, cached_at FROM analytics_cache
		 WHERE video_id = $1 AND date BETWEEN $2 AND $3
		 ORDER BY date, metric_type`,
		videoID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AnalyticsPoint
	for rows.Next() {
		var p models.AnalyticsPoint
		if err := rows.Scan(&p.ID, &p.VideoID, &p.MetricType, &p.Value, &p.Date, &p.CachedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertChannelMetrics caches one day of channel metrics.
func (r *Repository) UpsertChannelMetrics(ctx context.Context, m models.ChannelMetrics) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO channel_metrics (creator_id, channel_id, subscribers, total_views, total_watch_time, average_view_duration, date, cached_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (channel_id, date) DO UPDATE SET
		   subscribers = EXCLUDED.subscribers,
		   total_views = EXCLUDED.total_views,
		   total_watch_time = EXCLUDED.total_watch_time,
		   average_view_duration = EXCLUDED.average_view_duration,
		   cached_at = EXCLUDED.cached_at`,
		m.CreatorID, m.ChannelID, m.Subscribers, m.TotalViews, m.TotalWatchTime, m.AverageViewDuration, m.Date, time.Now().UTC())
	return err
}

// ChannelHistory returns a creator's channel metrics in [start, end].
func (r *Repository) ChannelHistory(ctx context.Context, creatorID uuid.UUID, start, end time.Time) ([]models.ChannelMetrics, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, creator_id, channel_id, subscribers, total_views, total_watch_time, average_view_duration, date, cached_at
		 FROM channel_metrics
		 WHERE creator_id = $1 AND date BETWEEN $2 AND $3
		 ORDER BY date`,
		creatorID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChannelMetrics
	for rows.Next() {
		var m models.ChannelMetrics
		if err := rows.Scan(&m.ID, &m.CreatorID, &m.ChannelID, &m.Subscribers, &m.TotalViews, &m.TotalWatchTime, &m.AverageViewDuration, &m.Date, &m.CachedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddCompetitor tracks a competitor channel; re-adding reactivates it.
func (r *Repository) AddCompetitor(ctx context.Context, creatorID uuid.UUID, channelID, channelName string) (*models.CompetitorChannel, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO competitor_channels (creator_id, channel_id, channel_name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (creator_id, channel_id)
		 DO UPDATE SET channel_name = EXCLUDED.channel_name, is_active = TRUE
		 RETURNING id, creator_id, channel_id, channel_name, is_active, added_at`,
		creatorID, channelID, channelName)
	var c models.CompetitorChannel
	if err := row.Scan(&c.ID, &c.CreatorID, &c.ChannelID, &c.ChannelName, &c.IsActive, &c.AddedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCompetitors returns a creator's active competitors.
func (r *Repository) ListCompetitors(ctx context.Context, creatorID uuid.UUID) ([]models.CompetitorChannel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, creator_id, channel_id, channel_name, is_active, added_at
		 FROM competitor_channels WHERE creator_id = $1 AND is_active ORDER BY added_at`,
		creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CompetitorChannel
	for rows.Next() {
		var c models.CompetitorChannel
		if err := rows.Scan(&c.ID, &c.CreatorID, &c.ChannelID, &c.ChannelName, &c.IsActive, &c.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RemoveCompetitor deactivates a tracked competitor.
func (r *Repository) RemoveCompetitor(ctx context.Context, creatorID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE competitor_channels SET is_active = FALSE WHERE id = $1 AND creator_id = $2 AND is_active",
		id, creatorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCompetitorNotFound
	}
	return nil
}

// SaveSEOAnalysis stores one analysis run.
func (r *Repository) SaveSEOAnalysis(ctx context.Context, a models.SEOAnalysis) (*models.SEOAnalysis, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO seo_analyses (video_id, title, description, tags, score, keyword_suggestions, recommendations)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, analyzed_at`,
		a.VideoID, a.Title, a.Description, a.Tags, a.Score, a.Keywords, a.Recommendations)
	if err := row.Scan(&a.ID, &a.AnalyzedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// ReplaceRecommendations swaps a channel's posting recommendations for a
// fresh ranking in one transaction.
func (r *Repository) ReplaceRecommendations(ctx context.Context, creatorID uuid.UUID, channelID string, slots []Slot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"DELETE FROM posting_recommendations WHERE creator_id = $1 AND channel_id = $2",
		creatorID, channelID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, s := range slots {
		if _, err := tx.Exec(ctx,
			`INSERT INTO posting_recommendations (creator_id, channel_id, day_of_week, hour, expected_engagement, confidence, calculated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			creatorID, channelID, s.DayOfWeek, s.Hour, s.ExpectedEngagement, s.Confidence, now); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Recommendations returns the stored posting recommendations, best first.
func (r *Repository) Recommendations(ctx context.Context, creatorID uuid.UUID) ([]models.PostingRecommendation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, creator_id, channel_id, day_of_week, hour, expected_engagement, confidence, calculated_at
		 FROM posting_recommendations WHERE creator_id = $1
		 ORDER BY expected_engagement DESC, day_of_week, hour`,
		creatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PostingRecommendation
	for rows.Next() {
		var p models.PostingRecommendation
		if err := rows.Scan(&p.ID, &p.CreatorID, &p.ChannelID, &p.DayOfWeek, &p.Hour, &p.ExpectedEngagement, &p.Confidence, &p.CalculatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
