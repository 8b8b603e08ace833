package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/nishan052/folio/internal/api"
	"github.com/nishan052/folio/internal/cache"
	"github.com/nishan052/folio/internal/composer"
	"github.com/nishan052/folio/internal/config"
	"github.com/nishan052/folio/internal/embed"
	"github.com/nishan052/folio/internal/hyde"
	"github.com/nishan052/folio/internal/llm"
	"github.com/nishan052/folio/internal/pipeline"
	"github.com/nishan052/folio/internal/retrieval"
	"github.com/nishan052/folio/internal/upstash"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also expose MCP tools over stdio")
}

func runServer(withMCP bool) error {
	cfg := config.Load()
	setupLogging(cfg.Log)

	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Cache and rate limiter share the Upstash store; without credentials
	// both degrade (cache always misses, limiter fails open).
	var store cache.Store
	if cfg.Upstash.RestURL != "" && cfg.Upstash.Token != "" {
		store = upstash.New(cfg.Upstash.RestURL, cfg.Upstash.Token)
	} else {
		slog.Warn("upstash not configured, caching and rate limiting disabled")
	}
	respCache := cache.NewResponseCache(store, cfg.Cache.TTL)
	limiter := cache.NewRateLimiter(store, cfg.RateLimit.Quota, cfg.RateLimit.Window)

	idx, closeIndex, err := buildIndex(cfg)
	if err != nil {
		return err
	}
	defer closeIndex()

	groq := llm.NewClientWithBaseURL(cfg.Groq.APIKey, cfg.Groq.Model, cfg.Groq.BaseURL)
	embedder := embed.NewWorkersAI(cfg.WorkersAI.AccountID, cfg.WorkersAI.APIToken, cfg.WorkersAI.Model)
	retriever := retrieval.New(embedder, idx, cfg.Retrieval.TopK, cfg.Retrieval.MinScore)
	expander := hyde.New(groq)
	comp := composer.New(composer.DefaultFacts())
	responder := pipeline.NewResponder(expander, retriever, comp, groq)

	handler := api.NewHandler(api.Deps{
		Responder:     responder,
		Limiter:       limiter,
		Cache:         respCache,
		AllowedOrigin: cfg.Server.AllowedOrigin,
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Retriever: retriever,
			Responder: responder,
			Facts:     composer.DefaultFacts(),
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("folio listening", "addr", addr, "index", cfg.Index.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
