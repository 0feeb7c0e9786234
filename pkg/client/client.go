package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hueshift/hueshift/pkg/api"
)

// Client talks to a HueShift server over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:7430".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// Deployments block server-side until terminal, so no
		// client timeout; cancellation comes from ctx
		http: &http.Client{},
	}
}

// Deploy triggers a rollout and blocks until it reaches a terminal
// state. A non-nil response is returned even for failed rollouts so
// the caller can inspect the record.
func (c *Client) Deploy(ctx context.Context, req api.DeployRequest) (*api.DeployResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/deployments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadGateway:
		var out api.DeployResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &out, nil
	default:
		return nil, apiError(resp)
	}
}

// Slots returns the current slot states.
func (c *Client) Slots(ctx context.Context) (*api.SlotsResponse, error) {
	var out api.SlotsResponse
	if err := c.get(ctx, "/v1/slots", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rollouts returns rollout history, oldest first.
func (c *Client) Rollouts(ctx context.Context) (*api.RolloutsResponse, error) {
	var out api.RolloutsResponse
	if err := c.get(ctx, "/v1/rollouts", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy reports whether the server answers its liveness check.
func (c *Client) Healthy(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var out api.HealthResponse
	return c.get(reqCtx, "/health", &out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiError extracts the server's error message from a non-OK response.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %s: %s", resp.Status, e.Error)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}
