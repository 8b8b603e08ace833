package index

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

const pineconeTimeout = 15 * time.Second

// Compile-time check that Pinecone implements Index.
var _ Index = (*Pinecone)(nil)

// Pinecone talks to a Pinecone serverless index over its data-plane REST API.
type Pinecone struct {
	apiKey     string
	host       string
	httpClient *http.Client
}

// NewPinecone creates a client for the index at the given host URL.
func NewPinecone(apiKey, host string) *Pinecone {
	return &Pinecone{
		apiKey:     apiKey,
		host:       strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: pineconeTimeout},
	}
}

func (p *Pinecone) post(ctx context.Context, path string, reqBody, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type queryResponse struct {
	Matches []Match `json:"matches"`
}

// Query returns the topK nearest records with metadata, without vector values.
func (p *Pinecone) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	var resp queryResponse
	err := p.post(ctx, "/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
		IncludeValues:   false,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

type upsertRequest struct {
	Vectors []Record `json:"vectors"`
}

// Upsert inserts or overwrites the given records.
func (p *Pinecone) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	return p.post(ctx, "/vectors/upsert", upsertRequest{Vectors: records}, nil)
}

type deleteRequest struct {
	DeleteAll bool `json:"deleteAll"`
}

// DeleteAll removes every record from the index.
func (p *Pinecone) DeleteAll(ctx context.Context) error {
	return p.post(ctx, "/vectors/delete", deleteRequest{DeleteAll: true}, nil)
}

type statsResponse struct {
	TotalVectorCount int `json:"totalVectorCount"`
}

// Count returns the total record count from the index stats endpoint.
func (p *Pinecone) Count(ctx context.Context) (int, error) {
	var resp statsResponse
	if err := p.post(ctx, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return 0, err
	}
	return resp.TotalVectorCount, nil
}
