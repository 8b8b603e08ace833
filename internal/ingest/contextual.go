package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nishan052/folio/internal/ollama"
)

const (
	// maxDocChars bounds the document prefix shown to the small model.
	maxDocChars    = 8000
	augmentTimeout = 30 * time.Second
)

// Generator is the local-model generation capability the augmenter needs.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts ollama.GenerateOptions) (string, error)
}

// Augmenter prepends an LLM-generated situating description to each chunk
// before embedding, improving retrievability of fragments that lack
// standalone context.
type Augmenter struct {
	gen   Generator
	model string
}

// NewAugmenter creates an Augmenter using the given model (for example
// "llama3.2:3b").
func NewAugmenter(gen Generator, model string) *Augmenter {
	return &Augmenter{gen: gen, model: model}
}

// Augment returns the chunk text with a short generated context prepended.
// On timeout, upstream error, or empty output it returns the raw chunk text;
// a single chunk's failure never halts ingestion.
func (a *Augmenter) Augment(ctx context.Context, fullDocument string, chunk Chunk) string {
	doc := fullDocument
	if len(doc) > maxDocChars {
		doc = doc[:maxDocChars] + "\n...[document truncated]"
	}

	prompt := fmt.Sprintf(`<document>
%s
</document>

Here is a chunk from this document:
<chunk>
%s
</chunk>

Give a short (2-3 sentence) context that situates this chunk within the overall document. This context will be prepended to the chunk to improve search retrieval. Only output the context sentences, nothing else.`, doc, chunk.Text)

	ctx, cancel := context.WithTimeout(ctx, augmentTimeout)
	defer cancel()

	out, err := a.gen.Generate(ctx, a.model, prompt, ollama.GenerateOptions{
		Temperature: 0.1,
		NumPredict:  150,
	})
	if err != nil {
		slog.Warn("context generation failed, using raw chunk", "chunk_index", chunk.ChunkIndex, "error", err)
		return chunk.Text
	}

	out = strings.TrimSpace(out)
	if out == "" {
		slog.Warn("context generation returned empty output, using raw chunk", "chunk_index", chunk.ChunkIndex)
		return chunk.Text
	}
	return out + "\n\n" + chunk.Text
}
