package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nishan052/folio/internal/embed"
	"github.com/nishan052/folio/internal/index"
)

const batchSize = 100

// Options control one ingestion run.
type Options struct {
	// Force clears the index and re-ingests even when records already exist.
	Force bool
	// Clear deletes all existing records before ingesting.
	Clear bool
}

// Result summarizes an ingestion run.
type Result struct {
	// Skipped is true when the index already held records and Force was off.
	Skipped  bool
	Existing int
	Upserted int
}

// Runner drives the offline pipeline: chunk each source, optionally augment,
// embed, and upsert in batches. Chunks are processed sequentially because
// the local augmentation model is resource sensitive.
type Runner struct {
	idx       index.Index
	embedder  embed.Embedder
	augmenter *Augmenter
	logger    *slog.Logger
}

// NewRunner creates a Runner. augmenter may be nil to skip context
// generation.
func NewRunner(idx index.Index, embedder embed.Embedder, augmenter *Augmenter) *Runner {
	return &Runner{
		idx:       idx,
		embedder:  embedder,
		augmenter: augmenter,
		logger:    slog.Default(),
	}
}

// Run ingests the given sources. When the index already contains records and
// opts.Force is not set, the run is an idempotent no-op. Record IDs are
// deterministic (sourceID_chunkIndex) so a forced re-run overwrites rather
// than duplicates.
func (r *Runner) Run(ctx context.Context, sources []Source, opts Options) (Result, error) {
	var res Result

	existing, err := r.idx.Count(ctx)
	if err != nil {
		return res, fmt.Errorf("checking index stats: %w", err)
	}
	res.Existing = existing

	if existing > 0 && !opts.Force {
		r.logger.Info("index already populated, skipping (use --force to re-ingest)", "records", existing)
		res.Skipped = true
		return res, nil
	}

	if opts.Clear || opts.Force {
		r.logger.Info("clearing existing records", "records", existing)
		if err := r.idx.DeleteAll(ctx); err != nil {
			return res, fmt.Errorf("clearing index: %w", err)
		}
	}

	var records []index.Record
	dimension := 0
	for _, src := range sources {
		chunks := ChunkText(src.Text)
		r.logger.Info("processing source", "source", src.ID, "chunks", len(chunks))

		for _, chunk := range chunks {
			text := chunk.Text
			if r.augmenter != nil {
				text = r.augmenter.Augment(ctx, src.Text, chunk)
			}

			vec, err := r.embedder.Embed(ctx, text)
			if err != nil {
				return res, fmt.Errorf("embedding %s chunk %d: %w", src.ID, chunk.ChunkIndex, err)
			}
			if dimension == 0 {
				dimension = len(vec)
			} else if len(vec) != dimension {
				return res, fmt.Errorf("embedding dimension changed mid-run: got %d, expected %d", len(vec), dimension)
			}

			metadata := map[string]any{
				"text":        text,
				"source":      src.ID,
				"type":        src.Type,
				"chunkIndex":  chunk.ChunkIndex,
				"totalChunks": chunk.TotalChunks,
				"timestamp":   time.Now().UTC().Format("2006-01-02"),
			}
			for k, v := range src.Metadata {
				metadata[k] = v
			}

			records = append(records, index.Record{
				ID:       fmt.Sprintf("%s_%d", src.ID, chunk.ChunkIndex),
				Values:   vec,
				Metadata: metadata,
			})
		}
	}

	for i := 0; i < len(records); i += batchSize {
		batch := records[i:min(i+batchSize, len(records))]
		if err := r.idx.Upsert(ctx, batch); err != nil {
			return res, fmt.Errorf("upserting batch at offset %d: %w", i, err)
		}
		res.Upserted += len(batch)
		r.logger.Info("upserted batch", "progress", fmt.Sprintf("%d/%d", res.Upserted, len(records)))
	}

	r.logger.Info("ingestion complete", "vectors", res.Upserted, "dimension", dimension)
	return res, nil
}
