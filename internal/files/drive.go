package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/integrations"
	"github.com/creatorhub/backend/internal/models"
)

const driveAPIBase = "https://www.googleapis.com/drive/v3"

// ErrFileNotFound is returned when Drive knows nothing about a file ID.
var ErrFileNotFound = errors.New("drive: file not found")

const listFields = "nextPageToken,files(id,name,mimeType,size,modifiedTime,webViewLink)"

// RemoteFile is a Drive file as returned by the API.
type RemoteFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size,string"`
	ModifiedTime string `json:"modifiedTime"`
	WebViewLink  string `json:"webViewLink"`
}

// Quota is the Drive storage usage for an account.
type Quota struct {
	UsedBytes  int64 `json:"used_bytes"`
	LimitBytes int64 `json:"limit_bytes"` // 0 means unlimited
}

// DriveClient talks to the Google Drive API v3 with a user's stored tokens.
type DriveClient struct {
	tokens  *integrations.Service
	logger  *zap.Logger
	baseURL string
}

// NewDriveClient creates a Drive API client.
func NewDriveClient(tokens *integrations.Service, logger *zap.Logger) *DriveClient {
	return &DriveClient{tokens: tokens, logger: logger, baseURL: driveAPIBase}
}

func (d *DriveClient) getJSON(ctx context.Context, userID uuid.UUID, rawURL string, out interface{}) error {
	hc, err := d.tokens.HTTPClient(ctx, userID, models.ServiceGoogleDrive)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrFileNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
		return fmt.Errorf("drive: status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListAll pages through every non-trashed file the account can see and
// returns them newest first. Drive caps pages at 1000 entries.
func (d *DriveClient) ListAll(ctx context.Context, userID uuid.UUID) ([]RemoteFile, error) {
	var all []RemoteFile
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("q", "trashed = false")
		q.Set("fields", listFields)
		q.Set("orderBy", "modifiedTime desc")
		q.Set("pageSize", "1000")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page struct {
			NextPageToken string       `json:"nextPageToken"`
			Files         []RemoteFile `json:"files"`
		}
		if err := d.getJSON(ctx, userID, d.baseURL+"/files?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		all = append(all, page.Files...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

// Get fetches one file's metadata.
func (d *DriveClient) Get(ctx context.Context, userID uuid.UUID, fileID string) (*RemoteFile, error) {
	var f RemoteFile
	u := fmt.Sprintf("%s/files/%s?fields=id,name,mimeType,size,modifiedTime,webViewLink", d.baseURL, url.PathEscape(fileID))
	if err := d.getJSON(ctx, userID, u, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Download streams a file's content. The caller must close the reader.
func (d *DriveClient) Download(ctx context.Context, userID uuid.UUID, fileID string) (io.ReadCloser, int64, error) {
	hc, err := d.tokens.HTTPClient(ctx, userID, models.ServiceGoogleDrive)
	if err != nil {
		return nil, 0, err
	}
	u := fmt.Sprintf("%s/files/%s?alt=media", d.baseURL, url.PathEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, 0, ErrFileNotFound
		}
		return nil, 0, fmt.Errorf("drive: download status %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}

// StorageQuota returns the account's storage usage.
func (d *DriveClient) StorageQuota(ctx context.Context, userID uuid.UUID) (*Quota, error) {
	var body struct {
		StorageQuota struct {
			Usage string `json:"usage"`
			Limit string `json:"limit"`
		} `json:"storageQuota"`
	}
	if err := d.getJSON(ctx, userID, d.baseURL+"/about?fields=storageQuota", &body); err != nil {
		return nil, err
	}
	return &Quota{
		UsedBytes:  parseBytes(body.StorageQuota.Usage),
		LimitBytes: parseBytes(body.StorageQuota.Limit),
	}, nil
}

func parseBytes(s string) int64 {
	var n int64
	fmt.Sscanf(s, "%d", &n)
	return n
}

// toModel converts a Drive API file into the cached representation.
func (f *RemoteFile) toModel(creatorID uuid.UUID) models.DriveFile {
	modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
	if err != nil {
		modified = time.Time{}
	}
	return models.DriveFile{
		FileID:       f.ID,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Size:         f.Size,
		ModifiedTime: modified,
		WebViewLink:  f.WebViewLink,
		CreatorID:    creatorID,
	}
}
