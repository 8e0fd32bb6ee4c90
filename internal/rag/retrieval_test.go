package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// mockEmbedder implements Embedder for testing
type mockEmbedder struct {
	embedFunc func(ctx context.Context, texts []string) ([][]float32, error)
	dimension int
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedFunc != nil {
		return m.embedFunc(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.dimension)
		vec[0] = 1
		vectors[i] = vec
	}
	return vectors, nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := m.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (m *mockEmbedder) Model() string  { return "mock" }
func (m *mockEmbedder) Dimension() int { return m.dimension }

func TestNewRetriever(t *testing.T) {
	embedder := &mockEmbedder{dimension: 3}
	chunks, vectors := testChunks()
	index, _ := BuildFlatIndex("mock", 3, chunks, vectors)

	t.Run("valid parameters", func(t *testing.T) {
		r, err := NewRetriever(embedder, index)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r == nil {
			t.Fatal("retriever is nil")
		}
	})

	t.Run("nil embedder", func(t *testing.T) {
		if _, err := NewRetriever(nil, index); err == nil {
			t.Error("expected error for nil embedder")
		}
	})

	t.Run("nil index", func(t *testing.T) {
		if _, err := NewRetriever(embedder, nil); err == nil {
			t.Error("expected error for nil index")
		}
	})
}

func TestRetriever_Search(t *testing.T) {
	embedder := &mockEmbedder{dimension: 3}
	chunks, vectors := testChunks()
	index, _ := BuildFlatIndex("mock", 3, chunks, vectors)
	r, _ := NewRetriever(embedder, index)

	results, err := r.Search(context.Background(), "What is the Sun?", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	// Mock embedder always returns (1,0,0), so the sun chunk wins.
	if results[0].Chunk.Source != "sun.txt" {
		t.Errorf("expected sun.txt, got %s", results[0].Chunk.Source)
	}
}

func TestRetriever_Search_Validation(t *testing.T) {
	embedder := &mockEmbedder{dimension: 3}
	chunks, vectors := testChunks()
	index, _ := BuildFlatIndex("mock", 3, chunks, vectors)
	r, _ := NewRetriever(embedder, index)

	t.Run("empty query", func(t *testing.T) {
		if _, err := r.Search(context.Background(), "", 1); err == nil {
			t.Error("expected error for empty query")
		}
	})

	t.Run("invalid k", func(t *testing.T) {
		if _, err := r.Search(context.Background(), "hi", 0); err == nil {
			t.Error("expected error for k=0")
		}
	})
}

func TestRetriever_Search_EmbedderError(t *testing.T) {
	wantErr := errors.New("model offline")
	embedder := &mockEmbedder{
		dimension: 3,
		embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, wantErr
		},
	}
	chunks, vectors := testChunks()
	index, _ := BuildFlatIndex("mock", 3, chunks, vectors)
	r, _ := NewRetriever(embedder, index)

	_, err := r.Search(context.Background(), "hi", 1)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped embedder error, got %v", err)
	}
}

func TestRetriever_Candidates_FiltersByThreshold(t *testing.T) {
	embedder := &mockEmbedder{dimension: 3}
	chunks, vectors := testChunks()
	index, _ := BuildFlatIndex("mock", 3, chunks, vectors)
	r, _ := NewRetriever(embedder, index)

	// Query vector is (1,0,0): distances are 0, sqrt(2), sqrt(2).
	admitted, err := r.Candidates(context.Background(), "q", 3, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(admitted) != 1 {
		t.Fatalf("expected 1 admitted chunk, got %d", len(admitted))
	}
	if admitted[0].Chunk.ChunkID != 0 {
		t.Errorf("expected chunk 0, got %d", admitted[0].Chunk.ChunkID)
	}

	// Loose threshold admits everything.
	all, err := r.Candidates(context.Background(), "q", 3, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 admitted chunks, got %d", len(all))
	}
}

func TestRetriever_Candidates_EmptyIndex(t *testing.T) {
	embedder := &mockEmbedder{dimension: 3}
	index, _ := BuildFlatIndex("mock", 3, nil, nil)
	r, _ := NewRetriever(embedder, index)

	admitted, err := r.Candidates(context.Background(), "q", 3, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(admitted) != 0 {
		t.Errorf("expected no candidates, got %d", len(admitted))
	}
}

// Guards against the index mutating result ordering between calls.
func TestRetriever_Search_Stable(t *testing.T) {
	embedder := &mockEmbedder{dimension: 3}
	chunks, vectors := testChunks()
	index, _ := BuildFlatIndex("mock", 3, chunks, vectors)
	r, _ := NewRetriever(embedder, index)

	for i := 0; i < 3; i++ {
		results, err := r.Search(context.Background(), "q", 3)
		if err != nil {
			t.Fatalf("search %d failed: %v", i, err)
		}
		got := fmt.Sprintf("%d-%d-%d", results[0].Chunk.ChunkID, results[1].Chunk.ChunkID, results[2].Chunk.ChunkID)
		if got != "0-1-2" && got != "0-2-1" {
			t.Errorf("unexpected ordering %s", got)
		}
		if results[0].Chunk.ChunkID != 0 {
			t.Errorf("top result changed across calls: %d", results[0].Chunk.ChunkID)
		}
	}
}
