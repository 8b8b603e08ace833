package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nishan052/folio/internal/config"
	"github.com/nishan052/folio/internal/embed"
	"github.com/nishan052/folio/internal/ingest"
	"github.com/nishan052/folio/internal/ollama"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk, embed, and index the portfolio sources",
	Long: `Ingest reads PDFs and JSON data files, splits them into contextual
chunks, embeds each chunk with a local Ollama model, and upserts the vectors
into the index.

The run is idempotent: if the index already holds records it exits without
changes unless --force is given. Set SKIP_CONTEXT=true to skip the slow
per-chunk context generation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		clearFirst, _ := cmd.Flags().GetBool("clear")
		return runIngest(force, clearFirst)
	},
}

func init() {
	ingestCmd.Flags().Bool("force", false, "clear the index and re-ingest everything")
	ingestCmd.Flags().Bool("clear", false, "delete all existing vectors before ingesting")
}

func runIngest(force, clearFirst bool) error {
	cfg := config.Load()
	setupLogging(cfg.Log)

	if err := cfg.ValidateIngest(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Ingest.SkipContext {
		printStep("Mode: fast (no context generation)")
	} else {
		printStep("Mode: full (with contextual retrieval)")
	}

	ollamaClient := ollama.New(cfg.Ollama.BaseURL)
	if !ollamaClient.IsRunning(ctx) {
		return fmt.Errorf("ollama is not running at %s (start it with: ollama serve)", cfg.Ollama.BaseURL)
	}
	if !ollamaClient.HasModel(ctx, cfg.Ollama.EmbedModel) {
		return fmt.Errorf("embedding model %s not found (run: ollama pull %s)", cfg.Ollama.EmbedModel, cfg.Ollama.EmbedModel)
	}
	if !cfg.Ingest.SkipContext && !ollamaClient.HasModel(ctx, cfg.Ollama.ContextModel) {
		printWarning("context model %s not found; run: ollama pull %s, or set SKIP_CONTEXT=true", cfg.Ollama.ContextModel, cfg.Ollama.ContextModel)
	}

	idx, closeIndex, err := buildIndex(cfg)
	if err != nil {
		return err
	}
	defer closeIndex()

	sources, err := loadSources(cfg.Ingest.DataDir)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources found under %s", cfg.Ingest.DataDir)
	}
	printStep("Loaded %d sources", len(sources))

	var augmenter *ingest.Augmenter
	if !cfg.Ingest.SkipContext {
		augmenter = ingest.NewAugmenter(ollamaClient, cfg.Ollama.ContextModel)
	}
	embedder := embed.NewOllama(ollamaClient, cfg.Ollama.EmbedModel)
	runner := ingest.NewRunner(idx, embedder, augmenter)

	res, err := runner.Run(ctx, sources, ingest.Options{Force: force, Clear: clearFirst})
	if err != nil {
		return err
	}
	if res.Skipped {
		printWarning("index already has %d vectors; run with --force to re-ingest", res.Existing)
		return nil
	}

	printSuccess("Ingestion complete: %d vectors upserted", res.Upserted)
	return nil
}

// loadSources gathers every portfolio source: PDFs plus the structured JSON
// files, all under the data directory.
func loadSources(dataDir string) ([]ingest.Source, error) {
	sources, err := ingest.LoadPDFs(dataDir)
	if err != nil {
		return nil, err
	}

	for _, load := range []struct {
		name string
		fn   func(string) ([]ingest.Source, error)
	}{
		{"experience.json", ingest.LoadExperience},
		{"projects.json", ingest.LoadProjects},
		{"skills.json", ingest.LoadSkills},
	} {
		more, err := load.fn(filepath.Join(dataDir, load.name))
		if err != nil {
			return nil, err
		}
		sources = append(sources, more...)
	}
	return sources, nil
}
