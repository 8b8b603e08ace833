package embed

import (
	"context"
	"strings"
)

// OllamaBackend is the subset of the Ollama client the adapter needs.
type OllamaBackend interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Ollama adapts the local Ollama client to the Embedder interface. It is the
// ingestion-path backend: nomic-embed-text, 768 dimensions, matching the
// query-path model.
type Ollama struct {
	client OllamaBackend
	model  string
}

// NewOllama creates an Ollama-backed Embedder using the given model.
func NewOllama(client OllamaBackend, model string) *Ollama {
	return &Ollama{client: client, model: model}
}

// Embed returns the embedding vector for the given text.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	return o.client.Embed(ctx, o.model, truncate(strings.TrimSpace(text)))
}
