// Package api is the typed HTTP client for the Privora server API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
)

const requestTimeout = 15 * time.Second

// Client talks to the server's /api/v1 JSON endpoints. It remembers the
// access token issued at login and sends it on every authorized call.
type Client struct {
	base  string
	http  *http.Client
	token string
}

func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: requestTimeout},
	}
}

// SetToken installs an access token, e.g. one restored from a previous
// session.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) Token() string { return c.token }

// User mirrors the server's user view.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Session is the result of register or login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// File mirrors the server's file metadata.
type File struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	DisplayName  string    `json:"display_name"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	Encrypted    bool      `json:"encrypted"`
	KeyRef       string    `json:"key_ref,omitempty"`
	UploadStatus string    `json:"upload_status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FileVersion mirrors one version history entry.
type FileVersion struct {
	ID         string    `json:"id"`
	FileID     string    `json:"file_id"`
	Version    int64     `json:"version"`
	Size       int64     `json:"size"`
	ChangeNote string    `json:"change_note,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// UploadTask carries the presigned PUT target for freshly registered content.
type UploadTask struct {
	FileID string `json:"file_id"`
	URL    string `json:"url"`
}

// Share mirrors the server's grant view.
type Share struct {
	ID             string     `json:"id"`
	FileID         string     `json:"file_id"`
	RecipientID    string     `json:"recipient_id,omitempty"`
	RecipientEmail string     `json:"recipient_email,omitempty"`
	GroupID        string     `json:"group_id,omitempty"`
	Permissions    []string   `json:"permissions"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	MaxAccessCount *int64     `json:"max_access_count,omitempty"`
	AccessCount    int64      `json:"access_count"`
	Protected      bool       `json:"protected"`
	Revoked        bool       `json:"revoked"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ShareRequest describes a grant to create. Exactly one of RecipientID,
// RecipientEmail, GroupID must be set.
type ShareRequest struct {
	FileID         string     `json:"file_id"`
	RecipientID    string     `json:"recipient_id,omitempty"`
	RecipientEmail string     `json:"recipient_email,omitempty"`
	GroupID        string     `json:"group_id,omitempty"`
	Permissions    []string   `json:"permissions"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	MaxAccessCount *int64     `json:"max_access_count,omitempty"`
	Password       string     `json:"password,omitempty"`
}

// UploadRequest registers new content.
type UploadRequest struct {
	DisplayName  string `json:"display_name"`
	OriginalName string `json:"original_name,omitempty"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mime_type,omitempty"`
	Encrypted    bool   `json:"encrypted"`
	KeyRef       string `json:"key_ref,omitempty"`
}

// Group is a named set of users a share can target.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// DownloadSource is a ready-to-fetch transfer description.
type DownloadSource struct {
	FileID     string `json:"file_id"`
	URL        string `json:"url"`
	Size       int64  `json:"size"`
	Encrypted  bool   `json:"encrypted"`
	Capability string `json:"capability"`
}

func (c *Client) Register(ctx context.Context, email, displayName, password string) (*Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":        email,
		"display_name": displayName,
		"password":     password,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

func (c *Client) RegisterUpload(ctx context.Context, req UploadRequest) (*File, *UploadTask, error) {
	var out struct {
		File   *File       `json:"file"`
		Upload *UploadTask `json:"upload"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/files", req, &out); err != nil {
		return nil, nil, err
	}
	return out.File, out.Upload, nil
}

func (c *Client) CompleteUpload(ctx context.Context, fileID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/files/"+fileID+"/complete", nil, nil)
}

func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	var out struct {
		Files []File `json:"files"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/files", nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	var out File
	if err := c.do(ctx, http.MethodGet, "/api/v1/files/"+fileID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateVersion(ctx context.Context, fileID string, size int64, changeNote string) (*FileVersion, *UploadTask, error) {
	var out struct {
		Version *FileVersion `json:"version"`
		Upload  *UploadTask  `json:"upload"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/files/"+fileID+"/versions", map[string]any{
		"size":        size,
		"change_note": changeNote,
	}, &out)
	if err != nil {
		return nil, nil, err
	}
	return out.Version, out.Upload, nil
}

func (c *Client) ListVersions(ctx context.Context, fileID string) ([]FileVersion, error) {
	var out struct {
		Versions []FileVersion `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/files/"+fileID+"/versions", nil, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// Download asks the server for a presigned source, consuming one access on
// the contributing grant.
func (c *Client) Download(ctx context.Context, fileID, password string) (*DownloadSource, error) {
	var out DownloadSource
	body := map[string]string{}
	if password != "" {
		body["password"] = password
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/files/"+fileID+"/download", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateShare(ctx context.Context, req ShareRequest) (*Share, error) {
	var out Share
	if err := c.do(ctx, http.MethodPost, "/api/v1/shares", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSharesForFile(ctx context.Context, fileID string) ([]Share, error) {
	var out struct {
		Shares []Share `json:"shares"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/files/"+fileID+"/shares", nil, &out); err != nil {
		return nil, err
	}
	return out.Shares, nil
}

func (c *Client) ListReceivedShares(ctx context.Context) ([]Share, error) {
	var out struct {
		Shares []Share `json:"shares"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/shares/received", nil, &out); err != nil {
		return nil, err
	}
	return out.Shares, nil
}

func (c *Client) AcceptShare(ctx context.Context, shareID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/shares/"+shareID+"/accept", nil, nil)
}

func (c *Client) RejectShare(ctx context.Context, shareID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/shares/"+shareID+"/reject", nil, nil)
}

func (c *Client) RevokeShare(ctx context.Context, shareID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/shares/"+shareID, nil, nil)
}

// BulkRevokeShares revokes every live grant of one file, returning how many
// were revoked.
func (c *Client) BulkRevokeShares(ctx context.Context, fileID string) (int64, error) {
	var out struct {
		Revoked int64 `json:"revoked"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/files/"+fileID+"/shares/revoke", nil, &out); err != nil {
		return 0, err
	}
	return out.Revoked, nil
}

func (c *Client) CreateGroup(ctx context.Context, name string) (*Group, error) {
	var out Group
	if err := c.do(ctx, http.MethodPost, "/api/v1/groups", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddGroupMember(ctx context.Context, groupID, userID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/groups/"+groupID+"/members",
		map[string]string{"user_id": userID}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiError turns an error response back into the domain sentinel the server
// mapped it from.
func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(b, &payload)
	msg := payload.Error
	if msg == "" {
		msg = strings.TrimSpace(string(b))
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", common.ErrNotFound, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, msg)
	case http.StatusForbidden:
		switch {
		case strings.Contains(msg, "expired"):
			return fmt.Errorf("%w: %s", common.ErrExpired, msg)
		case strings.Contains(msg, "revoked"):
			return fmt.Errorf("%w: %s", common.ErrRevoked, msg)
		case strings.Contains(msg, "quota"):
			return fmt.Errorf("%w: %s", common.ErrQuotaExceeded, msg)
		default:
			return fmt.Errorf("%w: %s", common.ErrAccessDenied, msg)
		}
	case http.StatusConflict:
		if strings.Contains(msg, "version") {
			return fmt.Errorf("%w: %s", common.ErrVersionConflict, msg)
		}
		return fmt.Errorf("%w: %s", common.ErrDuplicateGrant, msg)
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", common.ErrFileTooLarge, msg)
	default:
		return fmt.Errorf("server returned %s: %s", resp.Status, msg)
	}
}
