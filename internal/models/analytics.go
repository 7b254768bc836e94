package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalyticsPoint caches one YouTube Analytics metric value for a video and day.
// Unique on (video_id, metric_type, date).
type AnalyticsPoint struct {
	ID         uuid.UUID `json:"id"`
	VideoID    string    `json:"video_id"`
	MetricType string    `json:"metric_type"` // views, watch_time, likes, comments, shares, impressions, ctr
	Value      float64   `json:"value"`
	Date       time.Time `json:"date"`
	CachedAt   time.Time `json:"cached_at"`
}

// ChannelMetrics stores channel-level metrics for one day.
type ChannelMetrics struct {
	ID                  uuid.UUID `json:"id"`
	CreatorID           uuid.UUID `json:"creator_id"`
	ChannelID           string    `json:"channel_id"`
	Subscribers         int64     `json:"subscribers"`
	TotalViews          int64     `json:"total_views"`
	TotalWatchTime      int64     `json:"total_watch_time"` // minutes
	AverageViewDuration float64   `json:"average_view_duration"` // seconds
	Date                time.Time `json:"date"`
	CachedAt            time.Time `json:"cached_at"`
}

// CompetitorChannel is a channel a creator tracks for comparison.
type CompetitorChannel struct {
	ID          uuid.UUID `json:"id"`
	CreatorID   uuid.UUID `json:"creator_id"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	IsActive    bool      `json:"is_active"`
	AddedAt     time.Time `json:"added_at"`
}

// SEOAnalysis stores the result of scoring a video's metadata.
type SEOAnalysis struct {
	ID              uuid.UUID `json:"id"`
	VideoID         string    `json:"video_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Tags            []string  `json:"tags"`
	Score           int       `json:"score"` // 0-100
	Keywords        []string  `json:"keyword_suggestions"`
	Recommendations []string  `json:"recommendations"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// PostingRecommendation is a ranked publish-time suggestion for a channel.
type PostingRecommendation struct {
	ID                 uuid.UUID `json:"id"`
	CreatorID          uuid.UUID `json:"creator_id"`
	ChannelID          string    `json:"channel_id"`
	DayOfWeek          int       `json:"day_of_week"` // 0=Monday .. 6=Sunday
	Hour               int       `json:"hour"`        // 0-23
	ExpectedEngagement float64   `json:"expected_engagement"`
	Confidence         float64   `json:"confidence"`
	CalculatedAt       time.Time `json:"calculated_at"`
}
