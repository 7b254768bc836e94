package youtube

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const analyticsAPIBase = "https://youtubeanalytics.googleapis.com/v2"

// DailyMetrics is one day of channel or video analytics.
type DailyMetrics struct {
	Date              time.Time `json:"date"`
	Views             int64     `json:"views"`
	WatchTimeMinutes  int64     `json:"watch_time_minutes"`
	AvgViewDurationS  int64     `json:"avg_view_duration_seconds"`
	SubscribersGained int64     `json:"subscribers_gained"`
	Likes             int64     `json:"likes"`
	Comments          int64     `json:"comments"`
	Impressions       int64     `json:"impressions"`
	ImpressionsCTR    float64   `json:"impressions_ctr"`
}

const analyticsMetrics = "views,estimatedMinutesWatched,averageViewDuration,subscribersGained,likes,comments,annotationImpressions,annotationClickThroughRate"

// ChannelDaily queries the YouTube Analytics API for per-day channel metrics
// in [start, end] inclusive.
func (c *Client) ChannelDaily(ctx context.Context, userID uuid.UUID, start, end time.Time) ([]DailyMetrics, error) {
	return c.queryDaily(ctx, userID, "", start, end)
}

// VideoDaily queries per-day metrics for a single video.
func (c *Client) VideoDaily(ctx context.Context, userID uuid.UUID, videoID string, start, end time.Time) ([]DailyMetrics, error) {
	return c.queryDaily(ctx, userID, videoID, start, end)
}

func (c *Client) queryDaily(ctx context.Context, userID uuid.UUID, videoID string, start, end time.Time) ([]DailyMetrics, error) {
	q := url.Values{}
	q.Set("ids", "channel==MINE")
	q.Set("startDate", start.Format("2006-01-02"))
	q.Set("endDate", end.Format("2006-01-02"))
	q.Set("metrics", analyticsMetrics)
	q.Set("dimensions", "day")
	q.Set("sort", "day")
	if videoID != "" {
		q.Set("filters", "video=="+videoID)
	}

	var body reportBody
	u := c.analyticsURL + "/reports?" + q.Encode()
	if err := c.getJSON(ctx, userID, u, &body); err != nil {
		return nil, err
	}
	return decodeDailyReport(body)
}

type reportBody struct {
	ColumnHeaders []struct {
		Name string `json:"name"`
	} `json:"columnHeaders"`
	Rows [][]interface{} `json:"rows"`
}

func decodeDailyReport(body reportBody) ([]DailyMetrics, error) {
	cols := make(map[string]int, len(body.ColumnHeaders))
	for i, h := range body.ColumnHeaders {
		cols[h.Name] = i
	}

	out := make([]DailyMetrics, 0, len(body.Rows))
	for _, row := range body.Rows {
		day, err := rowString(row, cols, "day")
		if err != nil {
			return nil, err
		}
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, fmt.Errorf("youtube analytics: bad day %q: %w", day, err)
		}
		out = append(out, DailyMetrics{
			Date:              date,
			Views:             rowInt(row, cols, "views"),
			WatchTimeMinutes:  rowInt(row, cols, "estimatedMinutesWatched"),
			AvgViewDurationS:  rowInt(row, cols, "averageViewDuration"),
			SubscribersGained: rowInt(row, cols, "subscribersGained"),
			Likes:             rowInt(row, cols, "likes"),
			Comments:          rowInt(row, cols, "comments"),
			Impressions:       rowInt(row, cols, "annotationImpressions"),
			ImpressionsCTR:    rowFloat(row, cols, "annotationClickThroughRate"),
		})
	}
	return out, nil
}

// VideoEngagement reads a video's cumulative impressions and clicks, used by
// the A/B metrics collector. Impressions require the extended metrics set
// that is only available to channel owners.
func (c *Client) VideoEngagement(ctx context.Context, userID uuid.UUID, videoID string, start, end time.Time) (impressions, views int64, err error) {
	q := url.Values{}
	q.Set("ids", "channel==MINE")
	q.Set("startDate", start.Format("2006-01-02"))
	q.Set("endDate", end.Format("2006-01-02"))
	q.Set("metrics", "views,annotationImpressions")
	q.Set("filters", "video=="+videoID)

	var body reportBody
	u := c.analyticsURL + "/reports?" + q.Encode()
	if err := c.getJSON(ctx, userID, u, &body); err != nil {
		return 0, 0, err
	}
	if len(body.Rows) == 0 {
		return 0, 0, nil
	}
	cols := make(map[string]int, len(body.ColumnHeaders))
	for i, h := range body.ColumnHeaders {
		cols[h.Name] = i
	}
	row := body.Rows[0]
	return rowInt(row, cols, "annotationImpressions"), rowInt(row, cols, "views"), nil
}

func rowString(row []interface{}, cols map[string]int, name string) (string, error) {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return "", fmt.Errorf("youtube analytics: missing column %q", name)
	}
	s, ok := row[i].(string)
	if !ok {
		return "", fmt.Errorf("youtube analytics: column %q is not a string", name)
	}
	return s, nil
}

func rowInt(row []interface{}, cols map[string]int, name string) int64 {
	return int64(rowFloat(row, cols, name))
}

func rowFloat(row []interface{}, cols map[string]int, name string) float64 {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return 0
	}
	f, ok := row[i].(float64)
	if !ok {
		return 0
	}
	return f
}
