package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nishan052/folio/internal/config"
	"github.com/nishan052/folio/internal/ollama"
	"github.com/nishan052/folio/internal/upstash"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the health of all external collaborators",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func showStatus() error {
	cfg := config.Load()
	setupLogging(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var (
		ollamaStatus string
		indexStatus  string
		cacheStatus  string
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		client := ollama.New(cfg.Ollama.BaseURL)
		if !client.IsRunning(gctx) {
			ollamaStatus = "not running"
			return nil
		}
		models, err := client.ListModels(gctx)
		if err != nil {
			ollamaStatus = "running (could not list models)"
			return nil
		}
		ollamaStatus = "running, models: " + strings.Join(models, ", ")
		return nil
	})

	g.Go(func() error {
		idx, closeIndex, err := buildIndex(cfg)
		if err != nil {
			indexStatus = "unavailable: " + err.Error()
			return nil
		}
		defer closeIndex()
		count, err := idx.Count(gctx)
		if err != nil {
			indexStatus = "unreachable: " + err.Error()
			return nil
		}
		indexStatus = fmt.Sprintf("%s backend, %d vectors", cfg.Index.Backend, count)
		return nil
	})

	g.Go(func() error {
		if cfg.Upstash.RestURL == "" || cfg.Upstash.Token == "" {
			cacheStatus = "not configured (cache disabled, limiter fails open)"
			return nil
		}
		store := upstash.New(cfg.Upstash.RestURL, cfg.Upstash.Token)
		if _, _, err := store.Get(gctx, "status:ping"); err != nil {
			cacheStatus = "unreachable: " + err.Error()
			return nil
		}
		cacheStatus = "reachable"
		return nil
	})

	g.Wait()

	printStatus("Ollama", "%s", ollamaStatus)
	printStatus("Index", "%s", indexStatus)
	printStatus("Upstash", "%s", cacheStatus)
	if cfg.Groq.APIKey == "" {
		printStatus("Groq", "GROQ_API_KEY not set")
	} else {
		printStatus("Groq", "configured, model %s", cfg.Groq.Model)
	}
	return nil
}
