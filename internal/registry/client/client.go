// Package regclient is the HTTP client gateways use to talk to the
// registry: announce, active-node listing, permitted-channel listing, and
// metrics push. All calls authenticate with the shared-secret header.
package regclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NodeInfo mirrors the registry's directory entry.
type NodeInfo struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client talks to one registry instance.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// New builds a Client for the registry at baseURL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("regclient: %s %s returned %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Announce upserts this gateway's directory record. Doubles as heartbeat.
func (c *Client) Announce(ctx context.Context, id, url, status string) error {
	return c.do(ctx, http.MethodPost, "/announce", map[string]string{
		"id":     id,
		"url":    url,
		"status": status,
	}, nil)
}

// ActiveNodes lists nodes currently inside the liveness window, including
// the caller; callers filter out their own id.
func (c *Client) ActiveNodes(ctx context.Context) ([]NodeInfo, error) {
	var nodes []NodeInfo
	if err := c.do(ctx, http.MethodGet, "/nodes", nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Channels lists the channel names nodeID is permitted to serve.
func (c *Client) Channels(ctx context.Context, nodeID string) ([]string, error) {
	var channels []string
	if err := c.do(ctx, http.MethodGet, "/channels/"+nodeID, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// PushMetrics uploads the node's latest snapshot. The registry treats the
// push as a heartbeat.
func (c *Client) PushMetrics(ctx context.Context, nodeID string, snapshot interface{}) error {
	return c.do(ctx, http.MethodPost, "/metrics/"+nodeID, snapshot, nil)
}

// UpsertChannel creates or replaces a channel ACL. Used by the operator CLI.
func (c *Client) UpsertChannel(ctx context.Context, name string, allowedNodes []string) error {
	return c.do(ctx, http.MethodPost, "/channels", map[string]interface{}{
		"name":          name,
		"allowed_nodes": allowedNodes,
	}, nil)
}
