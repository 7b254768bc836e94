package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/auth"
	"github.com/creatorhub/backend/internal/integrations"
	"github.com/creatorhub/backend/internal/middleware"
	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/youtube"
	"github.com/creatorhub/backend/pkg/response"
)

const defaultRangeDays = 28

// Handler serves the analytics endpoints.
type Handler struct {
	repo      *Repository
	yt        *youtube.Client
	userRepo  *auth.Repository
	pdfAuthor string
	logger    *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(repo *Repository, yt *youtube.Client, userRepo *auth.Repository, pdfAuthor string, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, yt: yt, userRepo: userRepo, pdfAuthor: pdfAuthor, logger: logger}
}

func (h *Handler) teamOwner(c *gin.Context) (uuid.UUID, bool) {
	idVal, ok := c.Get(middleware.ContextUserID)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return uuid.Nil, false
	}
	id, _ := idVal.(uuid.UUID)
	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Unauthorized(c, "unknown user")
		return uuid.Nil, false
	}
	return user.TeamOwner(), true
}

// dateRange reads ?start/?end (YYYY-MM-DD), defaulting to the last 28 days.
func dateRange(c *gin.Context) (start, end time.Time, err error) {
	end = time.Now().UTC().Truncate(24 * time.Hour)
	start = end.AddDate(0, 0, -defaultRangeDays)
	if raw := c.Query("start"); raw != "" {
		if start, err = time.Parse("2006-01-02", raw); err != nil {
			return start, end, fmt.Errorf("invalid start date %q", raw)
		}
	}
	if raw := c.Query("end"); raw != "" {
		if end, err = time.Parse("2006-01-02", raw); err != nil {
			return start, end, fmt.Errorf("invalid end date %q", raw)
		}
	}
	if end.Before(start) {
		return start, end, errors.New("end date before start date")
	}
	return start, end, nil
}

// refreshVideoCache pulls daily metrics from the Analytics API into the cache.
func (h *Handler) refreshVideoCache(c *gin.Context, owner uuid.UUID, videoID string, start, end time.Time) error {
	daily, err := h.yt.VideoDaily(c.Request.Context(), owner, videoID, start, end)
	if err != nil {
		return err
	}
	points := make([]models.AnalyticsPoint, 0, len(daily)*6)
	for _, d := range daily {
		for metric, value := range map[string]float64{
			"views":       float64(d.Views),
			"watch_time":  float64(d.WatchTimeMinutes),
			"likes":       float64(d.Likes),
			"comments":    float64(d.Comments),
			"impressions": float64(d.Impressions),
			"ctr":         d.ImpressionsCTR,
		} {
			points = append(points, models.AnalyticsPoint{
				VideoID: videoID, MetricType: metric, Value: value, Date: d.Date,
			})
		}
	}
	return h.repo.UpsertPoints(c.Request.Context(), points)
}

// Video handles GET /analytics/videos/:id. ?refresh=true forces an API pull.
func (h *Handler) Video(c *gin.Context) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}
	videoID := c.Param("id")
	start, end, err := dateRange(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	points, err := h.repo.Points(c.Request.Context(), videoID, start, end)
	if err != nil {
		response.Internal(c, "failed to load metrics")
		return
	}
	if len(points) == 0 || c.Query("refresh") == "true" {
		if err := h.refreshVideoCache(c, owner, videoID, start, end); err != nil {
			if h.respondIntegrationError(c, err) {
				return
			}
			h.logger.Error("refresh video analytics", zap.Error(err))
			response.Internal(c, "failed to fetch analytics")
			return
		}
		if points, err = h.repo.Points(c.Request.Context(), videoID, start, end); err != nil {
			response.Internal(c, "failed to load metrics")
			return
		}
	}

	response.OK(c, gin.H{
		"video_id": videoID,
		"start":    start.Format("2006-01-02"),
		"end":      end.Format("2006-01-02"),
		"points":   points,
		"summary":  summarize(points),
	})
}

// summarize folds per-day points into totals plus an engagement rate.
func summarize(points []models.AnalyticsPoint) gin.H {
	totals := map[string]float64{}
	for _, p := range points {
		totals[p.MetricType] += p.Value
	}
	out := gin.H{"totals": totals}
	if rate, err := EngagementRate(int64(totals["likes"]), int64(totals["comments"]), 0, int64(totals["views"])); err == nil {
		out["engagement_rate"] = rate
	}
	return out
}

// Channel handles GET /analytics/channel: live channel info plus cached
// history and growth rates.
func (h *Handler) Channel(c *gin.Context) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}
	start, end, err := dateRange(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	info, err := h.yt.Channel(c.Request.Context(), owner)
	if err != nil {
		if h.respondIntegrationError(c, err) {
			return
		}
		h.logger.Error("fetch channel", zap.Error(err))
		response.Internal(c, "failed to fetch channel")
		return
	}

	daily, err := h.yt.ChannelDaily(c.Request.Context(), owner, start, end)
	if err != nil {
		h.logger.Warn("channel daily metrics", zap.Error(err))
	}
	subscribers := parseMetric(info.Subscriber)
	for _, d := range daily {
		m := models.ChannelMetrics{
			CreatorID:           owner,
			ChannelID:           info.ID,
			Subscribers:         subscribers,
			TotalViews:          d.Views,
			TotalWatchTime:      d.WatchTimeMinutes,
			AverageViewDuration: float64(d.AvgViewDurationS),
			Date:                d.Date,
		}
		if err := h.repo.UpsertChannelMetrics(c.Request.Context(), m); err != nil {
			h.logger.Warn("cache channel metrics", zap.Error(err))
		}
	}

	history, err := h.repo.ChannelHistory(c.Request.Context(), owner, start, end)
	if err != nil {
		response.Internal(c, "failed to load channel history")
		return
	}

	payload := gin.H{"channel": info, "history": history}
	if len(history) >= 2 {
		first, last := history[0], history[len(history)-1]
		if growth, err := GrowthRate(float64(first.TotalViews), float64(last.TotalViews)); err == nil {
			payload["views_growth_pct"] = growth
		}
		if growth, err := GrowthRate(float64(first.Subscribers), float64(last.Subscribers)); err == nil {
			payload["subscriber_growth_pct"] = growth
		}
	}
	response.OK(c, payload)
}

// Competitors handles GET /analytics/competitors.
func (h *Handler) Competitors(c *gin.Context) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}
	competitors, err := h.repo.ListCompetitors(c.Request.Context(), owner)
	if err != nil {
		response.Internal(c, "failed to list competitors")
		return
	}
	response.OK(c, gin.H{"competitors": competitors, "count": len(competitors)})
}

// AddCompetitor handles POST /analytics/competitors.
func (h *Handler) AddCompetitor(c *gin.Context) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}
	var body struct {
		ChannelID   string `json:"channel_id" binding:"required"`
		ChannelName string `json:"channel_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "channel_id and channel_name are required")
		return
	}
	competitor, err := h.repo.AddCompetitor(c.Request.Context(), owner, body.ChannelID, body.ChannelName)
	if err != nil {
		h.logger.Error("add competitor", zap.Error(err))
		response.Internal(c, "failed to add competitor")
		return
	}
	response.Created(c, gin.H{"competitor": competitor})
}

// RemoveCompetitor handles DELETE /analytics/competitors/:id.
func (h *Handler) RemoveCompetitor(c *gin.Context) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid competitor id")
		return
	}
	if err := h.repo.RemoveCompetitor(c.Request.Context(), owner, id); err != nil {
		if errors.Is(err, ErrCompetitorNotFound) {
			response.NotFound(c, "competitor not found")
			return
		}
		response.Internal(c, "failed to remove competitor")
		return
	}
	response.NoContent(c)
}

// SEO handles POST /analytics/seo: scores metadata and stores the analysis.
func (h *Handler) SEO(c *gin.Context) {
	if _, ok := h.teamOwner(c); !ok {
		return
	}
	var body struct {
		VideoID     string   `json:"video_id" binding:"required"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "video_id is required")
		return
	}

	result := AnalyzeSEO(SEOInput{Title: body.Title, Description: body.Description, Tags: body.Tags})
	saved, err := h.repo.SaveSEOAnalysis(c.Request.Context(), models.SEOAnalysis{
		VideoID:         body.VideoID,
		Title:           body.Title,
		Description:     body.Description,
		Tags:            body.Tags,
		Score:           result.Score,
		Keywords:        result.Keywords,
		Recommendations: result.Recommendations,
	})
	if err != nil {
		h.logger.Error("save seo analysis", zap.Error(err))
		response.Internal(c, "failed to save analysis")
		return
	}
	response.OK(c, gin.H{"analysis": saved})
}

// Posting handles GET /analytics/posting: stored recommendations, or a fresh
// ranking when ?refresh=true.
func (h *Handler) Posting(c *gin.Context) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}

	if c.Query("refresh") == "true" {
		if err := h.refreshPosting(c, owner); err != nil {
			if h.respondIntegrationError(c, err) {
				return
			}
			h.logger.Error("refresh posting recommendations", zap.Error(err))
			response.Internal(c, "failed to compute recommendations")
			return
		}
	}

	recs, err := h.repo.Recommendations(c.Request.Context(), owner)
	if err != nil {
		response.Internal(c, "failed to load recommendations")
		return
	}
	response.OK(c, gin.H{"recommendations": recs, "count": len(recs)})
}

func (h *Handler) refreshPosting(c *gin.Context, owner uuid.UUID) error {
	info, err := h.yt.Channel(c.Request.Context(), owner)
	if err != nil {
		return err
	}
	uploads, err := h.yt.RecentUploads(c.Request.Context(), owner, 50)
	if err != nil {
		return err
	}

	samples := make([]EngagementSample, 0, len(uploads))
	for _, u := range uploads {
		rate, err := EngagementRate(u.Likes, u.Comments, 0, u.Views)
		if err != nil {
			continue // unwatched upload
		}
		samples = append(samples, EngagementSample{PublishedAt: u.PublishedAt, Engagement: rate})
	}

	slots := RecommendPostingTimes(samples, 10)
	return h.repo.ReplaceRecommendations(c.Request.Context(), owner, info.ID, slots)
}

// ExportVideoCSV handles GET /analytics/videos/:id/export/csv.
func (h *Handler) ExportVideoCSV(c *gin.Context) {
	h.exportVideo(c, "csv")
}

// ExportVideoPDF handles GET /analytics/videos/:id/export/pdf.
func (h *Handler) ExportVideoPDF(c *gin.Context) {
	h.exportVideo(c, "pdf")
}

func (h *Handler) exportVideo(c *gin.Context, format string) {
	if _, ok := h.teamOwner(c); !ok {
		return
	}
	videoID := c.Param("id")
	start, end, err := dateRange(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	points, err := h.repo.Points(c.Request.Context(), videoID, start, end)
	if err != nil {
		response.Internal(c, "failed to load metrics")
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "csv":
		data, err = VideoMetricsCSV(videoID, points)
		contentType = "text/csv"
	default:
		data, err = VideoMetricsPDF(videoID, start, end, points, h.pdfAuthor)
		contentType = "application/pdf"
	}
	if err != nil {
		h.logger.Error("export video metrics", zap.Error(err))
		response.Internal(c, "failed to render export")
		return
	}
	filename := fmt.Sprintf("video-%s.%s", videoID, format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(200, contentType, data)
}

// ExportChannelCSV handles GET /analytics/channel/export/csv.
func (h *Handler) ExportChannelCSV(c *gin.Context) {
	h.exportChannel(c, "csv")
}

// ExportChannelPDF handles GET /analytics/channel/export/pdf.
func (h *Handler) ExportChannelPDF(c *gin.Context) {
	h.exportChannel(c, "pdf")
}

func (h *Handler) exportChannel(c *gin.Context, format string) {
	owner, ok := h.teamOwner(c)
	if !ok {
		return
	}
	start, end, err := dateRange(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	history, err := h.repo.ChannelHistory(c.Request.Context(), owner, start, end)
	if err != nil {
		response.Internal(c, "failed to load channel history")
		return
	}
	channelID := ""
	if len(history) > 0 {
		channelID = history[0].ChannelID
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "csv":
		data, err = ChannelMetricsCSV(history)
		contentType = "text/csv"
	default:
		data, err = ChannelMetricsPDF(channelID, start, end, history, h.pdfAuthor)
		contentType = "application/pdf"
	}
	if err != nil {
		h.logger.Error("export channel metrics", zap.Error(err))
		response.Internal(c, "failed to render export")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="channel-metrics.`+format+`"`)
	c.Data(200, contentType, data)
}

func (h *Handler) respondIntegrationError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, integrations.ErrNotConnected):
		response.BadRequest(c, "youtube is not connected")
	case errors.Is(err, integrations.ErrReconnectRequired), errors.Is(err, youtube.ErrUnauthorized):
		response.Unauthorized(c, "youtube needs to be reconnected")
	default:
		return false
	}
	return true
}

func parseMetric(s string) int64 {
	var n int64
	fmt.Sscanf(s, "%d", &n)
	return n
}
