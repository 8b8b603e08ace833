package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nishan052/folio/internal/config"
	"github.com/nishan052/folio/internal/index"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "folio",
	Short:   "RAG chatbot backend for Nishan Poojary's portfolio",
	Version: version,
	Long: `folio serves a retrieval-augmented chatbot over a portfolio's resume,
projects, and skills, and runs the offline pipeline that indexes them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// setupLogging installs a text slog handler on stderr at the configured
// level.
func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildIndex opens the configured vector index backend. The returned close
// function is a no-op for the remote backend.
func buildIndex(cfg config.Config) (index.Index, func() error, error) {
	switch cfg.Index.Backend {
	case "local":
		sq, err := index.OpenSQLite(cfg.Index.LocalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening local index: %w", err)
		}
		return sq, sq.Close, nil
	default:
		return index.NewPinecone(cfg.Pinecone.APIKey, cfg.Pinecone.Host), func() error { return nil }, nil
	}
}
