// Package rag implements the retrieval side of the assistant: embedding
// generation, vector index backends, similarity search, and the relevance
// gate that decides whether a retrieved chunk is trustworthy enough to
// answer from.
package rag

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Common errors for embedding operations
var (
	ErrEmptyTexts        = errors.New("no texts provided for embedding")
	ErrMissingAPIKey     = errors.New("OPENAI_API_KEY environment variable not set")
	ErrEmbeddingFailed   = errors.New("embedding generation failed")
	ErrModelUnavailable  = errors.New("embedding model unavailable")
	ErrInvalidDimension  = errors.New("invalid vector dimension")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Embedder defines the interface for generating text embeddings.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed generates embeddings for the provided texts, one vector per text,
	// in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates a single embedding for a query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Model returns the embedding model identifier.
	Model() string

	// Dimension returns the embedding vector dimension.
	Dimension() int
}

// OpenAIEmbedder implements the Embedder interface using OpenAI's API.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates a new OpenAI embedder instance. A missing API key
// is a construction-time failure: the pipeline must not start without a
// usable embedding model.
func NewOpenAIEmbedder(model string, dimension int) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, ErrMissingAPIKey)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dimension)
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &OpenAIEmbedder{
		client:    client,
		model:     model,
		dimension: dimension,
	}, nil
}

// Model returns the embedding model identifier.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Dimension returns the embedding vector dimension.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// Embed generates embeddings for the provided texts using OpenAI's API.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:          e.model,
		Dimensions:     openai.Int(int64(e.dimension)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	vectors := make([][]float32, len(resp.Data))
	for _, data := range resp.Data {
		// Convert []float64 to []float32
		vec := make([]float32, len(data.Embedding))
		for j, val := range data.Embedding {
			vec[j] = float32(val)
		}
		vectors[int(data.Index)] = vec
	}

	return vectors, nil
}

// EmbedQuery generates a single embedding for a query string.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}
