// Package ingest implements the offline indexing pipeline: chunking,
// contextual augmentation, embedding, and batched upserts into the vector
// index.
package ingest

import (
	"regexp"
	"strings"
)

const (
	// maxChunkChars is roughly 800 tokens at 4 chars per token.
	maxChunkChars = 3200
	// overlapChars keeps trailing context shared between consecutive chunks.
	overlapChars = 600
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Chunk is one overlapping segment of a source document.
type Chunk struct {
	Text        string
	ChunkIndex  int
	TotalChunks int
}

// ChunkText splits a document into overlapping, boundary-aware chunks.
// Line endings are normalized and runs of blank lines collapsed first.
// Documents at or under the chunk limit come back as a single chunk.
func ChunkText(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = blankRuns.ReplaceAllString(normalized, "\n\n")
	normalized = strings.TrimSpace(normalized)

	if len(normalized) <= maxChunkChars {
		return []Chunk{{Text: normalized, ChunkIndex: 0, TotalChunks: 1}}
	}

	var texts []string
	start := 0
	for start < len(normalized) {
		end := start + maxChunkChars

		if end >= len(normalized) {
			if tail := strings.TrimSpace(normalized[start:]); tail != "" {
				texts = append(texts, tail)
			}
			break
		}

		// Prefer a paragraph break in the back half of the window, then a
		// sentence break, then a bare newline, then a hard cutoff.
		breakAt := lastIndexWithin(normalized, "\n\n", end)
		if breakAt <= start+maxChunkChars/2 {
			breakAt = lastIndexWithin(normalized, ". ", end)
			if breakAt <= start+maxChunkChars/2 {
				breakAt = lastIndexWithin(normalized, "\n", end)
				if breakAt <= start+maxChunkChars/2 {
					breakAt = end
				}
			}
		}

		if chunk := strings.TrimSpace(normalized[start:min(breakAt+1, len(normalized))]); chunk != "" {
			texts = append(texts, chunk)
		}

		start = max(start+1, breakAt+1-overlapChars)
	}

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Text: t, ChunkIndex: i, TotalChunks: len(texts)}
	}
	return chunks
}

// lastIndexWithin returns the last occurrence of sep starting at or before
// pos, or -1.
func lastIndexWithin(s, sep string, pos int) int {
	limit := pos + len(sep)
	if limit > len(s) {
		limit = len(s)
	}
	return strings.LastIndex(s[:limit], sep)
}
