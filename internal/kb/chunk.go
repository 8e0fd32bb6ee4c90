// Package kb holds the knowledge-base document model: source documents,
// retrievable chunks, and the splitting logic that produces chunks during
// ingestion. Chunks are immutable once created; re-ingestion rebuilds the
// whole corpus and reassigns chunk IDs.
package kb

// Document represents a source file loaded from the knowledge-base directory.
type Document struct {
	// Source is the originating file path
	Source string `json:"source"`

	// Content is the full extracted text
	Content string `json:"content"`

	// Metadata carries loader-supplied extras (e.g., page count for PDFs)
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk is the unit of retrievable text. ChunkID values are dense and unique
// within a single ingestion run.
type Chunk struct {
	// Content is the chunk text
	Content string `json:"content"`

	// Source is the originating document identifier (file path)
	Source string `json:"source"`

	// ChunkID is assigned sequentially at chunk-creation time
	ChunkID int `json:"chunk_id"`

	// Metadata carries optional loader-supplied fields
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ScoredChunk pairs a chunk with its L2 distance to a query embedding.
// Lower distance means higher semantic similarity. Constructed per query,
// discarded after the query completes.
type ScoredChunk struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
}
