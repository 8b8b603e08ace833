package index

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

func openTestIndex(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_UpsertAndQuery(t *testing.T) {
	s := openTestIndex(t)
	ctx := context.Background()

	records := []Record{
		{ID: "a_0", Values: []float32{1, 0, 0}, Metadata: map[string]any{"text": "alpha", "source": "a"}},
		{ID: "b_0", Values: []float32{0, 1, 0}, Metadata: map[string]any{"text": "beta", "source": "b"}},
		{ID: "c_0", Values: []float32{0.9, 0.1, 0}, Metadata: map[string]any{"text": "gamma", "source": "c"}},
	}
	if err := s.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}

	// Exact match first, near match second, orthogonal excluded.
	if matches[0].ID != "a_0" {
		t.Errorf("matches[0].ID = %q, want a_0", matches[0].ID)
	}
	if math.Abs(float64(matches[0].Score)-1.0) > 1e-5 {
		t.Errorf("matches[0].Score = %v, want ~1.0", matches[0].Score)
	}
	if matches[1].ID != "c_0" {
		t.Errorf("matches[1].ID = %q, want c_0", matches[1].ID)
	}
	if matches[0].Score < matches[1].Score {
		t.Error("matches not ordered by descending score")
	}
	if matches[0].Metadata["text"] != "alpha" {
		t.Errorf("metadata = %v", matches[0].Metadata)
	}
}

func TestSQLite_UpsertOverwrites(t *testing.T) {
	s := openTestIndex(t)
	ctx := context.Background()

	first := []Record{{ID: "doc_0", Values: []float32{1, 0}, Metadata: map[string]any{"text": "old"}}}
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Re-ingesting the same deterministic ID must overwrite, not duplicate.
	second := []Record{{ID: "doc_0", Values: []float32{1, 0}, Metadata: map[string]any{"text": "new"}}}
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1 after overwrite", count)
	}

	matches, err := s.Query(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if matches[0].Metadata["text"] != "new" {
		t.Errorf("text = %v, want new", matches[0].Metadata["text"])
	}
}

func TestSQLite_DeleteAll(t *testing.T) {
	s := openTestIndex(t)
	ctx := context.Background()

	records := []Record{
		{ID: "a", Values: []float32{1}, Metadata: map[string]any{}},
		{ID: "b", Values: []float32{2}, Metadata: map[string]any{}},
	}
	if err := s.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}
}

func TestSQLite_QueryEmptyIndex(t *testing.T) {
	s := openTestIndex(t)

	matches, err := s.Query(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches from empty index", len(matches))
	}
}

func TestSQLite_QueryZeroVector(t *testing.T) {
	s := openTestIndex(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, []Record{{ID: "a", Values: []float32{1, 0}, Metadata: map[string]any{}}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := s.Query(ctx, []float32{0, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches for zero query vector, want 0", len(matches))
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.75, 0}
	out, err := decodeFloat32sInto(nil, encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecode_CorruptBlob(t *testing.T) {
	if _, err := decodeFloat32sInto(nil, []byte{1, 2, 3}); err == nil {
		t.Error("decode of 3-byte blob should fail")
	}
}
