// Package index abstracts the vector similarity index. The default backend
// is a hosted Pinecone index over its REST API; a SQLite backend with
// brute-force cosine search exists for keyless local development.
//
// Record IDs are deterministic (sourceID_chunkIndex), so Upsert overwrites on
// re-ingestion instead of duplicating.
package index

import "context"

// Record is one vector with its metadata, as stored in the index.
type Record struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

// Match is one query result. Values are never requested back from the index;
// only metadata and the similarity score matter to retrieval.
type Match struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Index is the vector index capability used by retrieval and ingestion.
type Index interface {
	// Query returns the topK nearest records by cosine similarity,
	// highest score first, with metadata attached.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Upsert inserts or overwrites records by ID.
	Upsert(ctx context.Context, records []Record) error

	// DeleteAll removes every record from the index.
	DeleteAll(ctx context.Context) error

	// Count returns the number of records currently in the index.
	Count(ctx context.Context) (int, error)
}
