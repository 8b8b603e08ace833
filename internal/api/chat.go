// Package api exposes the chat endpoint: validation, rate limiting, cache
// lookup, and the SSE relay between the generation backend and the client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nishan052/folio/internal/cache"
	"github.com/nishan052/folio/internal/llm"
	"github.com/nishan052/folio/internal/pipeline"
)

const (
	maxRequestBodySize = 64 << 10
	cacheWriteTimeout  = 10 * time.Second
)

// Responder runs the answer pipeline and opens the generation stream.
type Responder interface {
	Respond(ctx context.Context, message string, history []llm.Message, lang string) (io.ReadCloser, pipeline.Metadata, error)
}

// Limiter enforces the per-client request quota.
type Limiter interface {
	Check(ctx context.Context, identifier string) cache.LimitResult
}

// ResponseCache stores full responses keyed by message and language.
type ResponseCache interface {
	Get(ctx context.Context, message, lang string) (string, bool)
	Set(ctx context.Context, message, lang, response string) error
}

// Deps holds the chat handler's collaborators.
type Deps struct {
	Responder     Responder
	Limiter       Limiter
	Cache         ResponseCache
	AllowedOrigin string
}

// NewHandler returns the HTTP handler serving the chat API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(CORS(deps.AllowedOrigin))
	r.Use(RequestLogger)

	r.Get("/health", handleHealth)
	r.Post("/api/chat", handleChat(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		req, err := ParseChatRequest(r.Body)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				httpError(w, http.StatusBadRequest, verr.Msg)
				return
			}
			httpError(w, http.StatusBadRequest, "Invalid request")
			return
		}

		limit := deps.Limiter.Check(r.Context(), ClientIP(r))
		if !limit.Allowed {
			w.Header().Set("Retry-After", "60")
			httpError(w, http.StatusTooManyRequests, "Too many requests. Please wait a moment before asking again.")
			return
		}

		if cached, ok := deps.Cache.Get(r.Context(), req.Message, req.Lang); ok {
			serveCached(w, cached, limit.Remaining)
			return
		}

		stream, _, err := deps.Responder.Respond(r.Context(), req.Message, req.History, req.Lang)
		if err != nil {
			slog.Error("failed to open generation stream", "error", err)
			httpError(w, http.StatusServiceUnavailable, "AI service unavailable. Please try again shortly.")
			return
		}
		defer stream.Close()

		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "Streaming not supported")
			return
		}

		setStreamHeaders(w, "MISS", limit.Remaining)
		full, clean := relayStream(w, flusher, stream)

		// Cache writes run detached from the request; failures are logged
		// and never affect the response already delivered.
		if clean && full != "" {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
				defer cancel()
				if err := deps.Cache.Set(ctx, req.Message, req.Lang, full); err != nil {
					slog.Warn("cache write failed", "error", err)
				}
			}()
		}
	}
}

// serveCached replays a cached response as a single-event stream.
func serveCached(w http.ResponseWriter, cached string, remaining int) {
	setStreamHeaders(w, "HIT", remaining)
	writeContentEvent(w, cached)
	writeTerminator(w)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// relayStream re-frames the upstream token stream into our SSE envelope,
// flushing each event so the client renders before generation finishes.
// It returns the accumulated response text and whether the stream completed
// without interruption; the terminator is emitted on every path.
func relayStream(w http.ResponseWriter, flusher http.Flusher, rc io.Reader) (string, bool) {
	var full strings.Builder
	scanner := &llm.DeltaScanner{}
	clean := true

	emit := func(events []llm.Event) bool {
		for _, ev := range events {
			if ev.Done {
				return true
			}
			full.WriteString(ev.Content)
			writeContentEvent(w, ev.Content)
			flusher.Flush()
		}
		return false
	}

	buf := make([]byte, 4096)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			if emit(scanner.Write(buf[:n])) {
				break
			}
		}
		if err != nil {
			if err == io.EOF {
				emit(scanner.Flush())
			} else {
				slog.Warn("upstream stream read failed", "error", err)
				writeErrorEvent(w, "Stream interrupted")
				flusher.Flush()
				clean = false
			}
			break
		}
	}

	writeTerminator(w)
	flusher.Flush()
	return full.String(), clean
}

func setStreamHeaders(w http.ResponseWriter, cacheStatus string, remaining int) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Cache", cacheStatus)
	h.Set("X-Remaining", strconv.Itoa(remaining))
}

func writeContentEvent(w io.Writer, content string) {
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func writeErrorEvent(w io.Writer, msg string) {
	payload, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func writeTerminator(w io.Writer) {
	io.WriteString(w, "data: [DONE]\n\n")
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
