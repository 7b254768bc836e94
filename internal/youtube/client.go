package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/integrations"
	"github.com/creatorhub/backend/internal/models"
)

const (
	dataAPIBase   = "https://www.googleapis.com/youtube/v3"
	uploadAPIBase = "https://www.googleapis.com/upload/youtube/v3"
)

// ErrVideoNotFound is returned when the Data API knows nothing about a video ID.
var ErrVideoNotFound = errors.New("youtube: video not found")

// Snippet is the mutable metadata block of a video.
type Snippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	CategoryID  string   `json:"categoryId"`
}

// Statistics holds the public counters of a video.
type Statistics struct {
	ViewCount    string `json:"viewCount"`
	LikeCount    string `json:"likeCount"`
	CommentCount string `json:"commentCount"`
}

// VideoInfo is a video's snippet plus statistics.
type VideoInfo struct {
	ID         string     `json:"id"`
	Snippet    Snippet    `json:"snippet"`
	Statistics Statistics `json:"statistics"`
}

// ChannelInfo describes the authenticated user's channel.
type ChannelInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Subscriber string `json:"subscriber_count"`
	VideoCount string `json:"video_count"`
	ViewCount  string `json:"view_count"`
}

// UploadMeta is the metadata for a new video upload.
type UploadMeta struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string // private, unlisted, public
}

// Client talks to the YouTube Data API v3 on behalf of a user. Every call
// obtains an authenticated http client for the user's stored OAuth tokens.
type Client struct {
	tokens       *integrations.Service
	policy       RetryPolicy
	logger       *zap.Logger
	dataURL      string
	uploadURL    string
	analyticsURL string
}

// NewClient creates a YouTube Data API client.
func NewClient(tokens *integrations.Service, logger *zap.Logger) *Client {
	return &Client{
		tokens:       tokens,
		policy:       DefaultRetryPolicy(),
		logger:       logger,
		dataURL:      dataAPIBase,
		uploadURL:    uploadAPIBase,
		analyticsURL: analyticsAPIBase,
	}
}

func (c *Client) httpClient(ctx context.Context, userID uuid.UUID) (*http.Client, error) {
	return c.tokens.HTTPClient(ctx, userID, models.ServiceYouTube)
}

func (c *Client) getJSON(ctx context.Context, userID uuid.UUID, rawURL string, out interface{}) error {
	hc, err := c.httpClient(ctx, userID)
	if err != nil {
		return err
	}
	resp, err := c.policy.do(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		return hc.Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Channel returns the authenticated user's channel.
func (c *Client) Channel(ctx context.Context, userID uuid.UUID) (*ChannelInfo, error) {
	var body struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
			Statistics struct {
				SubscriberCount string `json:"subscriberCount"`
				VideoCount      string `json:"videoCount"`
				ViewCount       string `json:"viewCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	u := c.dataURL + "/channels?part=snippet,statistics&mine=true"
	if err := c.getJSON(ctx, userID, u, &body); err != nil {
		return nil, err
	}
	if len(body.Items) == 0 {
		return nil, errors.New("youtube: no channel for account")
	}
	it := body.Items[0]
	return &ChannelInfo{
		ID:         it.ID,
		Title:      it.Snippet.Title,
		Subscriber: it.Statistics.SubscriberCount,
		VideoCount: it.Statistics.VideoCount,
		ViewCount:  it.Statistics.ViewCount,
	}, nil
}

// Video fetches a video's snippet and statistics.
func (c *Client) Video(ctx context.Context, userID uuid.UUID, videoID string) (*VideoInfo, error) {
	var body struct {
		Items []VideoInfo `json:"items"`
	}
	u := fmt.Sprintf("%s/videos?part=snippet,statistics&id=%s", c.dataURL, url.QueryEscape(videoID))
	if err := c.getJSON(ctx, userID, u, &body); err != nil {
		return nil, err
	}
	if len(body.Items) == 0 {
		return nil, ErrVideoNotFound
	}
	return &body.Items[0], nil
}

// UploadStats is one recent upload with its counters, used for posting-time
// analysis.
type UploadStats struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	Views       int64     `json:"views"`
	Likes       int64     `json:"likes"`
	Comments    int64     `json:"comments"`
}

// RecentUploads lists the channel's latest uploads with statistics, newest
// first. max is capped at 50, the search page limit.
func (c *Client) RecentUploads(ctx context.Context, userID uuid.UUID, max int) ([]UploadStats, error) {
	if max <= 0 || max > 50 {
		max = 50
	}

	var search struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	u := fmt.Sprintf("%s/search?part=id&forMine=true&type=video&order=date&maxResults=%d", c.dataURL, max)
	if err := c.getJSON(ctx, userID, u, &search); err != nil {
		return nil, err
	}
	if len(search.Items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(search.Items))
	for _, it := range search.Items {
		ids = append(ids, it.ID.VideoID)
	}

	var videos struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title       string `json:"title"`
				PublishedAt string `json:"publishedAt"`
			} `json:"snippet"`
			Statistics struct {
				ViewCount    string `json:"viewCount"`
				LikeCount    string `json:"likeCount"`
				CommentCount string `json:"commentCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	u = fmt.Sprintf("%s/videos?part=snippet,statistics&id=%s", c.dataURL, url.QueryEscape(strings.Join(ids, ",")))
	if err := c.getJSON(ctx, userID, u, &videos); err != nil {
		return nil, err
	}

	out := make([]UploadStats, 0, len(videos.Items))
	for _, it := range videos.Items {
		published, err := time.Parse(time.RFC3339, it.Snippet.PublishedAt)
		if err != nil {
			continue
		}
		out = append(out, UploadStats{
			VideoID:     it.ID,
			Title:       it.Snippet.Title,
			PublishedAt: published,
			Views:       parseCount(it.Statistics.ViewCount),
			Likes:       parseCount(it.Statistics.LikeCount),
			Comments:    parseCount(it.Statistics.CommentCount),
		})
	}
	return out, nil
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// updateSnippet reads the current snippet, applies mutate, and writes it back.
// The Data API replaces the whole snippet, so unchanged fields must round-trip.
func (c *Client) updateSnippet(ctx context.Context, userID uuid.UUID, videoID string, mutate func(*Snippet)) error {
	info, err := c.Video(ctx, userID, videoID)
	if err != nil {
		return err
	}
	snippet := info.Snippet
	mutate(&snippet)
	if snippet.CategoryID == "" {
		snippet.CategoryID = "22"
	}

	payload, err := json.Marshal(map[string]interface{}{
		"id":      videoID,
		"snippet": snippet,
	})
	if err != nil {
		return err
	}

	hc, err := c.httpClient(ctx, userID)
	if err != nil {
		return err
	}
	resp, err := c.policy.do(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.dataURL+"/videos?part=snippet", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return hc.Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// SetTitle updates a video's title.
func (c *Client) SetTitle(ctx context.Context, userID uuid.UUID, videoID, title string) error {
	return c.updateSnippet(ctx, userID, videoID, func(s *Snippet) { s.Title = title })
}

// SetDescription updates a video's description.
func (c *Client) SetDescription(ctx context.Context, userID uuid.UUID, videoID, description string) error {
	return c.updateSnippet(ctx, userID, videoID, func(s *Snippet) { s.Description = description })
}

// SetThumbnail uploads a custom thumbnail for a video.
func (c *Client) SetThumbnail(ctx context.Context, userID uuid.UUID, videoID string, image []byte, contentType string) error {
	hc, err := c.httpClient(ctx, userID)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/thumbnails/set?videoId=%s", c.uploadURL, url.QueryEscape(videoID))
	resp, err := c.policy.do(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(image))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return hc.Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

// Upload performs a resumable upload of a new video and returns the YouTube
// video ID. The metadata request reserves an upload session; the video bytes
// stream through a single PUT against the session URL.
func (c *Client) Upload(ctx context.Context, userID uuid.UUID, meta UploadMeta, media io.Reader, size int64) (string, error) {
	hc, err := c.httpClient(ctx, userID)
	if err != nil {
		return "", err
	}

	if meta.CategoryID == "" {
		meta.CategoryID = "22"
	}
	if meta.Privacy == "" {
		meta.Privacy = "private"
	}
	payload, err := json.Marshal(map[string]interface{}{
		"snippet": Snippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryID:  meta.CategoryID,
		},
		"status": map[string]string{"privacyStatus": meta.Privacy},
	})
	if err != nil {
		return "", err
	}

	initURL := c.uploadURL + "/videos?uploadType=resumable&part=snippet,status"
	initResp, err := c.policy.do(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, initURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Upload-Content-Type", "video/*")
		if size > 0 {
			req.Header.Set("X-Upload-Content-Length", fmt.Sprintf("%d", size))
		}
		return hc.Do(req)
	})
	if err != nil {
		return "", err
	}
	io.Copy(io.Discard, initResp.Body)
	initResp.Body.Close()
	if initResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("youtube: upload session rejected with status %d", initResp.StatusCode)
	}
	sessionURL := initResp.Header.Get("Location")
	if sessionURL == "" {
		return "", errors.New("youtube: upload session missing location")
	}

	// Media bodies cannot be replayed, so the PUT is not retried.
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, media)
	if err != nil {
		return "", err
	}
	if size > 0 {
		req.ContentLength = size
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apiError(resp)
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", err
	}
	return uploaded.ID, nil
}

func apiError(resp *http.Response) error {
	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil && body.Error.Message != "" {
		return fmt.Errorf("youtube: api error %d: %s", body.Error.Code, body.Error.Message)
	}
	return fmt.Errorf("youtube: unexpected status %d", resp.StatusCode)
}
