package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/joshdurbin/linkregistry/internal/domain"
)

// APIError is a non-success reply from the server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned status %d", e.StatusCode)
}

// Unwrap maps the server's error code back to the registry error it came from
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "invalid_url":
		return domain.ErrInvalidURL
	case "invalid_validity":
		return domain.ErrInvalidValidity
	case "invalid_short_code":
		return domain.ErrInvalidShortCode
	case "duplicate_short_code":
		return domain.ErrDuplicateShortCode
	case "not_found":
		return domain.ErrNotFound
	case "expired":
		return domain.ErrExpired
	}
	if e.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

// Client represents an HTTP client for the link registry API
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient creates a new link registry client
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// Report redirects instead of following them
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// CreateLink creates a short link
func (c *Client) CreateLink(ctx context.Context, req domain.CreateLinkRequest) (*domain.CreateLinkResponse, error) {
	var result domain.CreateLinkResponse
	if err := c.do(ctx, http.MethodPost, "/api/links", req, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLink retrieves a short link, flipping its expired flag on the server when due
func (c *Client) GetLink(ctx context.Context, shortCode string) (*domain.CreateLinkResponse, error) {
	var result domain.CreateLinkResponse
	if err := c.do(ctx, http.MethodGet, "/api/links/"+url.PathEscape(shortCode), nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListLinks retrieves every short link, newest first
func (c *Client) ListLinks(ctx context.Context) ([]domain.CreateLinkResponse, error) {
	var result []domain.CreateLinkResponse
	if err := c.do(ctx, http.MethodGet, "/api/links", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteLink deletes a short link
func (c *Client) DeleteLink(ctx context.Context, shortCode string) error {
	return c.do(ctx, http.MethodDelete, "/api/links/"+url.PathEscape(shortCode), nil, http.StatusNoContent, nil)
}

// ClearLinks deletes every short link
func (c *Client) ClearLinks(ctx context.Context) (int, error) {
	var result domain.PurgeResponse
	if err := c.do(ctx, http.MethodDelete, "/api/links", nil, http.StatusOK, &result); err != nil {
		return 0, err
	}
	return result.Removed, nil
}

// PurgeExpired removes expired links on the server
func (c *Client) PurgeExpired(ctx context.Context) (int, error) {
	var result domain.PurgeResponse
	if err := c.do(ctx, http.MethodPost, "/api/links/purge", nil, http.StatusOK, &result); err != nil {
		return 0, err
	}
	return result.Removed, nil
}

// RefreshExpired flips the expired flag on every due link
func (c *Client) RefreshExpired(ctx context.Context) (int, error) {
	var result domain.RefreshResponse
	if err := c.do(ctx, http.MethodPost, "/api/links/refresh", nil, http.StatusOK, &result); err != nil {
		return 0, err
	}
	return result.Expired, nil
}

// Stats retrieves the analytics dashboard
func (c *Client) Stats(ctx context.Context) (*domain.Dashboard, error) {
	var result domain.Dashboard
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logs retrieves captured server log records, newest first
func (c *Client) Logs(ctx context.Context, level string, limit int) ([]domain.LogEntry, error) {
	query := url.Values{}
	if level != "" {
		query.Set("level", level)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/logs"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var result []domain.LogEntry
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ClearLogs empties the server's log buffer
func (c *Client) ClearLogs(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/logs", nil, http.StatusNoContent, nil)
}

// Visit follows a short link the way a browser would and returns the redirect target
func (c *Client) Visit(ctx context.Context, shortCode, source string) (string, error) {
	path := "/" + url.PathEscape(shortCode)
	if source != "" {
		path += "?src=" + url.QueryEscape(source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", decodeError(resp)
	}
	return resp.Header.Get("Location"), nil
}

// do sends body as JSON (when non-nil), checks the status and decodes into out (when non-nil)
func (c *Client) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
	}
	return apiErr
}
