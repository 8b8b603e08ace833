// Package hyde implements Hypothetical Document Embeddings: rewriting a user
// question into a plausible answer so that embedding the answer lands closer
// to the stored chunks than embedding the raw question would.
package hyde

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nishan052/folio/internal/llm"
)

const (
	expandTimeout   = 10 * time.Second
	expandMaxTokens = 150
)

const systemPrompt = `You write hypothetical resume excerpts. Given a visitor's question about a software developer's portfolio, write a short plausible answer as if it came from the developer's resume. Write the answer itself, not the question, and do not address the visitor. 2-4 sentences, plain text.`

// Completer is the non-streaming generation capability the expander needs.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, maxTokens int) (string, error)
}

// Expander rewrites queries into hypothetical answers for retrieval.
type Expander struct {
	client Completer
}

// New creates an Expander backed by the given completion client.
func New(client Completer) *Expander {
	return &Expander{client: client}
}

// Expand returns a hypothetical answer to the message. On any failure
// (timeout, upstream error, empty output) it returns the original message
// unchanged; this stage never fails the request.
func (e *Expander) Expand(ctx context.Context, message string) string {
	ctx, cancel := context.WithTimeout(ctx, expandTimeout)
	defer cancel()

	hypothesis, err := e.client.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: message},
	}, expandMaxTokens)
	if err != nil {
		slog.Warn("query expansion failed, using original message", "error", err)
		return message
	}

	hypothesis = strings.TrimSpace(hypothesis)
	if hypothesis == "" {
		slog.Warn("query expansion returned empty output, using original message")
		return message
	}
	return hypothesis
}
