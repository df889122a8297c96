package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hollowverse/releasemanager/internal/api"
	"github.com/hollowverse/releasemanager/internal/directory"
)

// ErrNotModified is returned by GetEnvironments when the server's ETag
// matches the one supplied.
var ErrNotModified = errors.New("environments not modified")

// APIError is a non-2xx response from the ops API.
type APIError struct {
	StatusCode int
	Code       api.ErrorCode
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Client is an HTTP client for the release manager ops API
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetEnvironments fetches the current directory snapshot. If etag is
// non-empty and still current, ErrNotModified is returned.
func (c *Client) GetEnvironments(ctx context.Context, etag string) (*directory.Snapshot, error) {
	req, err := c.newRequest(ctx, "/v1/environments")
	if err != nil {
		return nil, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	var snap directory.Snapshot
	if err := c.do(req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetEnvironment fetches a single environment by name
func (c *Client) GetEnvironment(ctx context.Context, name string) (*api.EnvironmentResponse, error) {
	req, err := c.newRequest(ctx, "/v1/environments/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}

	var env api.EnvironmentResponse
	if err := c.do(req, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// GetWeights fetches the weight table the edge splits traffic with
func (c *Client) GetWeights(ctx context.Context) (*api.WeightsResponse, error) {
	req, err := c.newRequest(ctx, "/v1/weights")
	if err != nil {
		return nil, err
	}

	var weights api.WeightsResponse
	if err := c.do(req, &weights); err != nil {
		return nil, err
	}
	return &weights, nil
}

func (c *Client) newRequest(ctx context.Context, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return ErrNotModified
	case resp.StatusCode != http.StatusOK:
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}

	var errResp api.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Code != "" {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Message
	}
	return apiErr
}
