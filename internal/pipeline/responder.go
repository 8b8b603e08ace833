// Package pipeline orchestrates the online answer path: query expansion,
// context retrieval, prompt composition, and opening the generation stream.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/nishan052/folio/internal/composer"
	"github.com/nishan052/folio/internal/llm"
	"github.com/nishan052/folio/internal/retrieval"
)

// Expander rewrites a query for retrieval. It never fails; on error it
// returns the input unchanged.
type Expander interface {
	Expand(ctx context.Context, message string) string
}

// Retriever finds context chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]retrieval.Chunk, error)
}

// Streamer opens a streaming completion for the given conversation.
type Streamer interface {
	Stream(ctx context.Context, messages []llm.Message) (io.ReadCloser, error)
}

// Metadata captures diagnostic information about one pipeline run.
type Metadata struct {
	Expanded   bool
	ChunksUsed int
	DurationMs int64
}

// Responder runs the request pipeline and hands back the raw upstream
// stream for the transport layer to relay.
type Responder struct {
	expander  Expander
	retriever Retriever
	composer  *composer.Composer
	streamer  Streamer
}

// NewResponder wires the pipeline components. expander may be nil to
// disable query expansion.
func NewResponder(expander Expander, retriever Retriever, comp *composer.Composer, streamer Streamer) *Responder {
	return &Responder{
		expander:  expander,
		retriever: retriever,
		composer:  comp,
		streamer:  streamer,
	}
}

// Respond runs the pipeline for one validated request:
//  1. Expand the message into a retrieval hypothesis (optional, never fails)
//  2. Retrieve context chunks (failure degrades to empty context)
//  3. Compose the system prompt from facts, chunks, and language
//  4. Open the generation stream
//
// Only step 4's failure is returned to the caller; everything before it
// degrades gracefully.
func (r *Responder) Respond(ctx context.Context, message string, history []llm.Message, lang string) (io.ReadCloser, Metadata, error) {
	start := time.Now()
	var meta Metadata

	query := message
	if r.expander != nil {
		query = r.expander.Expand(ctx, message)
		meta.Expanded = query != message
	}

	chunks, err := r.retriever.Retrieve(ctx, query)
	if err != nil {
		slog.Warn("retrieval failed, continuing with empty context", "error", err)
		chunks = nil
	}
	meta.ChunksUsed = len(chunks)

	systemPrompt := r.composer.Build(chunks, lang)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: message})

	stream, err := r.streamer.Stream(ctx, messages)
	meta.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		return nil, meta, err
	}

	slog.Debug("pipeline complete",
		"expanded", meta.Expanded,
		"chunks_used", meta.ChunksUsed,
		"duration_ms", meta.DurationMs,
	)
	return stream, meta, nil
}
