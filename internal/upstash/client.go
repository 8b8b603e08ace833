// Package upstash implements a minimal client for the Upstash Redis REST API.
// Commands are sent as JSON arrays to the endpoint root, the same wire format
// the serverless SDKs use.
package upstash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const requestTimeout = 5 * time.Second

// Client talks to an Upstash Redis database over its REST endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client for the given REST URL and token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// commandResponse mirrors the REST API envelope: exactly one of Result or
// Error is set.
type commandResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (c *Client) do(ctx context.Context, cmd ...string) (json.RawMessage, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", cmd[0], err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s: unexpected status %d: %s", cmd[0], resp.StatusCode, string(respBody))
	}

	var cr commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", cmd[0], err)
	}
	if cr.Error != "" {
		return nil, fmt.Errorf("%s: %s", cmd[0], cr.Error)
	}
	return cr.Result, nil
}

// Get returns the string value for key. The second return is false when the
// key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	result, err := c.do(ctx, "GET", key)
	if err != nil {
		return "", false, err
	}
	if string(result) == "null" {
		return "", false, nil
	}
	var val string
	if err := json.Unmarshal(result, &val); err != nil {
		return "", false, fmt.Errorf("decoding GET result: %w", err)
	}
	return val, true, nil
}

// SetEx stores value under key with the given TTL.
func (c *Client) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	seconds := int(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	_, err := c.do(ctx, "SET", key, value, "EX", strconv.Itoa(seconds))
	return err
}

// Incr atomically increments the counter at key and returns the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	result, err := c.do(ctx, "INCR", key)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := json.Unmarshal(result, &n); err != nil {
		return 0, fmt.Errorf("decoding INCR result: %w", err)
	}
	return n, nil
}

// Expire sets a TTL on an existing key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	seconds := int(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	_, err := c.do(ctx, "EXPIRE", key, strconv.Itoa(seconds))
	return err
}
