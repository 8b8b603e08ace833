package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	workersAIBaseURL = "https://api.cloudflare.com/client/v4"
	workersAITimeout = 15 * time.Second
)

// WorkersAI embeds text through the Cloudflare Workers AI REST API. It is the
// query-path backend: bge-base-en-v1.5, 768 dimensions.
type WorkersAI struct {
	accountID  string
	token      string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewWorkersAI creates a Workers AI embedding client.
func NewWorkersAI(accountID, token, model string) *WorkersAI {
	return &WorkersAI{
		accountID:  accountID,
		token:      token,
		model:      model,
		baseURL:    workersAIBaseURL,
		httpClient: &http.Client{Timeout: workersAITimeout},
	}
}

// NewWorkersAIWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewWorkersAIWithBaseURL(accountID, token, model, baseURL string) *WorkersAI {
	c := NewWorkersAI(accountID, token, model)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type workersAIRequest struct {
	Text []string `json:"text"`
}

type workersAIResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Data [][]float32 `json:"data"`
	} `json:"result"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Embed returns the embedding vector for the given text.
func (c *WorkersAI) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(workersAIRequest{Text: []string{truncate(strings.TrimSpace(text))}})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embed: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result workersAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}

	if !result.Success {
		msg := "unknown error"
		if len(result.Errors) > 0 {
			msg = result.Errors[0].Message
		}
		return nil, fmt.Errorf("embed: API error: %s", msg)
	}
	if len(result.Result.Data) == 0 || len(result.Result.Data[0]) == 0 {
		return nil, fmt.Errorf("embed: no embedding data in response")
	}
	return result.Result.Data[0], nil
}
