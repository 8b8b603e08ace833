package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWorkersAI_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/accounts/acct-1/ai/run/@cf/baai/bge-base-en-v1.5"
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer cf-token" {
			t.Errorf("Authorization = %q", got)
		}

		var req workersAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Text) != 1 || req.Text[0] != "what projects?" {
			t.Errorf("Text = %v", req.Text)
		}

		fmt.Fprint(w, `{"success":true,"result":{"data":[[0.5,0.25,0.125]]}}`)
	}))
	defer srv.Close()

	c := NewWorkersAIWithBaseURL("acct-1", "cf-token", "@cf/baai/bge-base-en-v1.5", srv.URL)
	vec, err := c.Embed(context.Background(), "  what projects?  ")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 {
		t.Errorf("vec = %v", vec)
	}
}

func TestWorkersAI_Truncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req workersAIRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Text[0]) != maxInputChars {
			t.Errorf("len(text) = %d, want %d", len(req.Text[0]), maxInputChars)
		}
		fmt.Fprint(w, `{"success":true,"result":{"data":[[0.1]]}}`)
	}))
	defer srv.Close()

	c := NewWorkersAIWithBaseURL("a", "t", "m", srv.URL)
	if _, err := c.Embed(context.Background(), strings.Repeat("x", maxInputChars*2)); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
}

func TestWorkersAI_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"errors":[{"message":"model overloaded"}]}`)
	}))
	defer srv.Close()

	c := NewWorkersAIWithBaseURL("a", "t", "m", srv.URL)
	_, err := c.Embed(context.Background(), "q")
	if err == nil {
		t.Fatal("Embed() error = nil, want API error")
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error = %v, want message from API", err)
	}
}

func TestWorkersAI_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"result":{"data":[]}}`)
	}))
	defer srv.Close()

	c := NewWorkersAIWithBaseURL("a", "t", "m", srv.URL)
	if _, err := c.Embed(context.Background(), "q"); err == nil {
		t.Error("Embed() error = nil, want error on empty data")
	}
}

// fakeOllama implements OllamaBackend.
type fakeOllama struct {
	gotModel string
	gotText  string
}

func (f *fakeOllama) Embed(_ context.Context, model, text string) ([]float32, error) {
	f.gotModel = model
	f.gotText = text
	return []float32{1, 2}, nil
}

func TestOllama_Embed(t *testing.T) {
	backend := &fakeOllama{}
	e := NewOllama(backend, "nomic-embed-text")

	vec, err := e.Embed(context.Background(), " some chunk text ")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("len(vec) = %d, want 2", len(vec))
	}
	if backend.gotModel != "nomic-embed-text" {
		t.Errorf("model = %q", backend.gotModel)
	}
	if backend.gotText != "some chunk text" {
		t.Errorf("text = %q, want trimmed", backend.gotText)
	}
}
