// Package retrieval finds the portfolio chunks most relevant to a query by
// embedding the query and searching the vector index.
package retrieval

import (
	"context"
	"fmt"

	"github.com/nishan052/folio/internal/embed"
	"github.com/nishan052/folio/internal/index"
)

const (
	defaultTopK     = 5
	defaultMinScore = 0.55
)

// Chunk is a retrieved context fragment with its similarity score.
type Chunk struct {
	Text   string
	Source string
	Type   string
	Score  float32
}

// Retriever combines embedding and vector search. Its failures are
// recoverable by contract: callers proceed with an empty chunk set rather
// than failing the request.
type Retriever struct {
	embedder embed.Embedder
	idx      index.Index
	topK     int
	minScore float32
}

// New creates a Retriever. topK <= 0 and minScore <= 0 select the defaults
// (5 and 0.55).
func New(embedder embed.Embedder, idx index.Index, topK int, minScore float32) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	return &Retriever{embedder: embedder, idx: idx, topK: topK, minScore: minScore}
}

// Retrieve embeds the query and returns the top-K most similar chunks,
// dropping matches below the score floor and matches without text.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Chunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.idx.Query(ctx, vec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	var chunks []Chunk
	for _, m := range matches {
		if m.Score < r.minScore {
			continue
		}
		c := Chunk{
			Text:   metaString(m.Metadata, "text", ""),
			Source: metaString(m.Metadata, "source", "unknown"),
			Type:   metaString(m.Metadata, "type", "unknown"),
			Score:  m.Score,
		}
		if c.Text == "" {
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func metaString(meta map[string]any, key, fallback string) string {
	if meta == nil {
		return fallback
	}
	if s, ok := meta[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
