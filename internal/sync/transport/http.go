// Package transport implements the HTTP client for the delta sync
// endpoints: the push/pull exchange, the status query, and the one-shot
// migration from the old full-snapshot model.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cadenza-app/cadenza/internal/models"
)

// DeviceHeader carries the device identifier on every request.
const DeviceHeader = "X-Device-ID"

// DefaultTimeout bounds a full exchange round trip.
const DefaultTimeout = 30 * time.Second

// ExchangeRequest is the push/pull request body.
type ExchangeRequest struct {
	LastKnownServerVersion int64                 `json:"lastKnownServerVersion"`
	Changes                []models.ChangeRecord `json:"changes"`
}

// ExchangeResponse is the push/pull response body.
type ExchangeResponse struct {
	NewChanges          []models.ChangeRecord   `json:"newChanges"`
	LatestServerVersion int64                   `json:"latestServerVersion"`
	Conflicts           []models.ConflictReport `json:"conflicts"`
}

// StatusResponse reports server-side sync state for this account.
type StatusResponse struct {
	LastKnownVersion int64 `json:"lastKnownVersion"`
	DeviceCount      int   `json:"deviceCount"`
	TotalChanges     int   `json:"totalChanges"`
	LastSync         int64 `json:"lastSync"`
}

// MigrationResponse is the result of the one-shot snapshot-to-delta
// migration.
type MigrationResponse struct {
	Migrated         bool   `json:"migrated"`
	Reason           string `json:"reason,omitempty"`
	EntriesConverted int    `json:"entriesConverted,omitempty"`
	ExistingChanges  int    `json:"existingChanges,omitempty"`
}

// Exchanger is the network port the protocol client depends on.
type Exchanger interface {
	Exchange(ctx context.Context, deviceID string, req *ExchangeRequest) (*ExchangeResponse, error)
}

// Client talks to the sync server over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a transport client. token may be empty for servers
// that authenticate by other means.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
}

// SetHTTPClient swaps the underlying HTTP client, mainly for tests.
func (c *Client) SetHTTPClient(h *http.Client) {
	c.http = h
}

// Exchange executes the delta push/pull round trip.
func (c *Client) Exchange(ctx context.Context, deviceID string, req *ExchangeRequest) (*ExchangeResponse, error) {
	var resp ExchangeResponse
	if err := c.post(ctx, "/api/sync/exchange", deviceID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status queries server-side sync state.
func (c *Client) Status(ctx context.Context, deviceID string) (*StatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sync/status", nil)
	if err != nil {
		return nil, err
	}
	c.decorate(httpReq, deviceID)

	var resp StatusResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Migrate performs the one-shot transition from the prior full-snapshot
// sync model to the delta model. The server decides whether anything
// needs converting; calling it again is safe.
func (c *Client) Migrate(ctx context.Context, deviceID string) (*MigrationResponse, error) {
	var resp MigrationResponse
	if err := c.post(ctx, "/api/sync/migrate", deviceID, struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path, deviceID string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.decorate(httpReq, deviceID)

	return c.do(httpReq, out)
}

func (c *Client) decorate(req *http.Request, deviceID string) {
	req.Header.Set(DeviceHeader, deviceID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
