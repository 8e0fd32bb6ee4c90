package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/orbit-labs/kbassist/internal/kb"
)

// ErrIndexNotFound indicates the persisted index could not be located or
// decoded. Fatal at construction: the pipeline must never silently serve
// from an empty index in place of a missing one.
var ErrIndexNotFound = errors.New("vector index not found")

// Index is the vector index collaborator. Given a query embedding it returns
// the k nearest stored chunks ordered ascending by L2 distance (best match
// first). An empty index returns an empty slice, never an error.
//
// Implementations must be safe for concurrent read-only use; the index is
// rebuilt offline by a single writer and never mutated while serving.
type Index interface {
	Search(ctx context.Context, vector []float32, k int) ([]kb.ScoredChunk, error)
	Count() int
	Close() error
}

// indexFile is the on-disk representation of a flat index.
type indexFile struct {
	Model     string     `json:"model"`
	Dimension int        `json:"dimension"`
	Chunks    []kb.Chunk `json:"chunks"`
	Vectors   [][]float32 `json:"vectors"`
}

// FlatIndex is a brute-force L2 index held fully in memory and persisted as
// a single JSON file. The corpus sizes this assistant targets make exact
// search cheaper and simpler than an approximate structure.
type FlatIndex struct {
	model     string
	dimension int
	chunks    []kb.Chunk
	vectors   [][]float32
}

// BuildFlatIndex constructs an index from parallel chunk and vector slices.
func BuildFlatIndex(model string, dimension int, chunks []kb.Chunk, vectors [][]float32) (*FlatIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dimension)
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrDimensionMismatch, i, len(v), dimension)
		}
	}

	return &FlatIndex{
		model:     model,
		dimension: dimension,
		chunks:    chunks,
		vectors:   vectors,
	}, nil
}

// LoadFlatIndex reads a persisted index from disk. A missing or corrupt file
// is reported as ErrIndexNotFound.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (run ingestion first to build the index)", ErrIndexNotFound, path)
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: corrupt index file: %v", ErrIndexNotFound, path, err)
	}
	if f.Dimension <= 0 || len(f.Chunks) != len(f.Vectors) {
		return nil, fmt.Errorf("%w: %s: inconsistent index contents", ErrIndexNotFound, path)
	}

	return &FlatIndex{
		model:     f.Model,
		dimension: f.Dimension,
		chunks:    f.Chunks,
		vectors:   f.Vectors,
	}, nil
}

// Save writes the index to disk, creating parent directories as needed.
func (x *FlatIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	data, err := json.Marshal(indexFile{
		Model:     x.model,
		Dimension: x.dimension,
		Chunks:    x.chunks,
		Vectors:   x.vectors,
	})
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	// Write-then-rename so a concurrent process start never observes a
	// partially written index.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}

// Search returns the k nearest chunks by L2 distance, ascending.
func (x *FlatIndex) Search(ctx context.Context, vector []float32, k int) ([]kb.ScoredChunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if len(x.vectors) == 0 {
		return []kb.ScoredChunk{}, nil
	}
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(vector), x.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := make([]kb.ScoredChunk, len(x.vectors))
	for i, v := range x.vectors {
		scored[i] = kb.ScoredChunk{
			Chunk:    x.chunks[i],
			Distance: l2Distance(vector, v),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Distance < scored[j].Distance
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Count returns the number of indexed chunks.
func (x *FlatIndex) Count() int {
	return len(x.chunks)
}

// Model returns the embedding model the index was built with.
func (x *FlatIndex) Model() string {
	return x.model
}

// Dimension returns the vector dimension of the index.
func (x *FlatIndex) Dimension() int {
	return x.dimension
}

// Close is a no-op for the in-memory index.
func (x *FlatIndex) Close() error {
	return nil
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
