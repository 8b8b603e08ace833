package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nishan052/folio/internal/cache"
	"github.com/nishan052/folio/internal/llm"
	"github.com/nishan052/folio/internal/pipeline"
)

type stubResponder struct {
	stream io.ReadCloser
	err    error
	calls  int
}

func (s *stubResponder) Respond(_ context.Context, _ string, _ []llm.Message, _ string) (io.ReadCloser, pipeline.Metadata, error) {
	s.calls++
	if s.err != nil {
		return nil, pipeline.Metadata{}, s.err
	}
	return s.stream, pipeline.Metadata{}, nil
}

type stubLimiter struct {
	result cache.LimitResult
}

func (s *stubLimiter) Check(_ context.Context, _ string) cache.LimitResult {
	return s.result
}

type stubCache struct {
	value string
	hit   bool
	set   chan string
}

func (s *stubCache) Get(_ context.Context, _, _ string) (string, bool) {
	return s.value, s.hit
}

func (s *stubCache) Set(_ context.Context, _, _, response string) error {
	if s.set != nil {
		s.set <- response
	}
	return nil
}

func newTestDeps(responder *stubResponder) Deps {
	return Deps{
		Responder: responder,
		Limiter:   &stubLimiter{result: cache.LimitResult{Allowed: true, Remaining: 9}},
		Cache:     &stubCache{},
	}
}

func postChat(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func upstream(lines ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(lines, "")))
}

func TestChat_EmptyMessage(t *testing.T) {
	h := NewHandler(newTestDeps(&stubResponder{}))

	rec := postChat(h, `{"message":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Message is required") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestChat_MessageTooLong(t *testing.T) {
	h := NewHandler(newTestDeps(&stubResponder{}))

	rec := postChat(h, `{"message":"`+strings.Repeat("a", 501)+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "too long") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestChat_RateLimited(t *testing.T) {
	deps := newTestDeps(&stubResponder{})
	deps.Limiter = &stubLimiter{result: cache.LimitResult{Allowed: false, Remaining: 0}}
	h := NewHandler(deps)

	rec := postChat(h, `{"message":"hello"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After: 60, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestChat_CacheHitSkipsGeneration(t *testing.T) {
	responder := &stubResponder{}
	deps := newTestDeps(responder)
	deps.Cache = &stubCache{value: "cached answer", hit: true}
	h := NewHandler(deps)

	rec := postChat(h, `{"message":"what is cached?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("expected X-Cache: HIT, got %q", rec.Header().Get("X-Cache"))
	}
	if rec.Header().Get("X-Remaining") != "9" {
		t.Errorf("expected X-Remaining: 9, got %q", rec.Header().Get("X-Remaining"))
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data: {"content":"cached answer"}`) || !strings.Contains(body, "data: [DONE]") {
		t.Errorf("unexpected body: %s", body)
	}
	if responder.calls != 0 {
		t.Error("generation backend must not be invoked on a cache hit")
	}
}

func TestChat_MissRelaysStreamAndCaches(t *testing.T) {
	responder := &stubResponder{stream: upstream(
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo!\"}}]}\n",
		"data: [DONE]\n",
	)}
	deps := newTestDeps(responder)
	set := make(chan string, 1)
	deps.Cache = &stubCache{set: set}
	h := NewHandler(deps)

	rec := postChat(h, `{"message":"say hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("expected X-Cache: MISS, got %q", rec.Header().Get("X-Cache"))
	}
	if rec.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}

	body := rec.Body.String()
	for _, want := range []string{`data: {"content":"Hel"}`, `data: {"content":"lo!"}`, "data: [DONE]\n\n"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	select {
	case cached := <-set:
		if cached != "Hello!" {
			t.Errorf("expected full response cached, got %q", cached)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cache write never happened")
	}
}

func TestChat_UpstreamUnavailable(t *testing.T) {
	h := NewHandler(newTestDeps(&stubResponder{err: errors.New("connection refused")}))

	rec := postChat(h, `{"message":"hello"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "AI service unavailable") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

type brokenReader struct {
	data string
	read bool
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if !b.read {
		b.read = true
		return copy(p, b.data), nil
	}
	return 0, errors.New("connection reset")
}

func (b *brokenReader) Close() error { return nil }

func TestChat_MidStreamErrorEmitsErrorEventAndTerminator(t *testing.T) {
	responder := &stubResponder{stream: &brokenReader{
		data: "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n",
	}}
	deps := newTestDeps(responder)
	set := make(chan string, 1)
	deps.Cache = &stubCache{set: set}
	h := NewHandler(deps)

	rec := postChat(h, `{"message":"hello"}`)

	body := rec.Body.String()
	if !strings.Contains(body, `data: {"content":"partial"}`) {
		t.Errorf("partial content missing from body:\n%s", body)
	}
	if !strings.Contains(body, `data: {"error":"Stream interrupted"}`) {
		t.Errorf("error event missing from body:\n%s", body)
	}
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Errorf("terminator must close the stream:\n%s", body)
	}

	select {
	case cached := <-set:
		t.Errorf("interrupted stream must not be cached, got %q", cached)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChat_PreflightAndSecurityHeaders(t *testing.T) {
	deps := newTestDeps(&stubResponder{})
	deps.AllowedOrigin = "https://nishan.dev"
	h := NewHandler(deps)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://nishan.dev" {
		t.Errorf("unexpected allow origin %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("unexpected allow methods %q", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options header")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options header")
	}
	if rec.Header().Get("Referrer-Policy") == "" {
		t.Error("missing Referrer-Policy header")
	}
}

func TestChat_Health(t *testing.T) {
	h := NewHandler(newTestDeps(&stubResponder{}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}
