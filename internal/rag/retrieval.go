package rag

import (
	"context"
	"fmt"

	"github.com/orbit-labs/kbassist/internal/kb"
)

// Retriever provides the raw-text search entry points over an Index,
// embedding queries internally.
type Retriever struct {
	embedder Embedder
	index    Index
}

// NewRetriever creates a Retriever over the given embedder and index.
func NewRetriever(embedder Embedder, index Index) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
	}, nil
}

// Search embeds the query text and returns the k nearest chunks ordered
// ascending by distance. An empty index yields an empty slice.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]kb.ScoredChunk, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := r.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	return chunks, nil
}

// Candidates retrieves up to k chunks and keeps only those admitted by the
// relevance gate. Diagnostic use only (the evaluation harness shows these
// alongside the answer); the serving path gates exactly the top-1 result
// inside the pipeline and never uses this filter for generation.
func (r *Retriever) Candidates(ctx context.Context, query string, k int, threshold float64) ([]kb.ScoredChunk, error) {
	chunks, err := r.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	admitted := make([]kb.ScoredChunk, 0, len(chunks))
	for _, sc := range chunks {
		if Admit(sc.Distance, threshold) {
			admitted = append(admitted, sc)
		}
	}
	return admitted, nil
}
