// Package embed converts text into fixed-dimension vectors. The query path
// and the ingestion path use different backends, but both must produce
// vectors of identical dimensionality or retrieval silently degrades to
// nonsense; the ingestion runner enforces that invariant.
package embed

import "context"

// maxInputChars bounds the text sent to any embedding backend.
const maxInputChars = 8000

// Embedder generates an embedding vector for a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// truncate trims text to the backend-safe maximum length.
func truncate(text string) string {
	if len(text) > maxInputChars {
		return text[:maxInputChars]
	}
	return text
}
