package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/groupbot-dev/groupbot/internal/api"
)

// Client is the HTTP client for the bot's local API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Status gets the bot status
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	var result api.StatusResponse
	if err := c.get(ctx, "/api/status", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Groups gets the managed groups
func (c *Client) Groups(ctx context.Context) ([]api.Group, error) {
	var result api.GroupsResponse
	if err := c.get(ctx, "/api/groups", &result); err != nil {
		return nil, err
	}
	return result.Groups, nil
}

// Latency gets the latency of the last received message
func (c *Client) Latency(ctx context.Context) (*api.LatencyResponse, error) {
	var result api.LatencyResponse
	if err := c.get(ctx, "/api/latency", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
