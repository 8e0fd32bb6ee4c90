// Package ingest builds the vector index from the knowledge-base directory:
// load documents, split into chunks, embed in batches, and persist. An
// ingestion run fully rebuilds the index; it is a separate, offline,
// single-writer process and no reader ever observes a partial index.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/orbit-labs/kbassist/internal/config"
	"github.com/orbit-labs/kbassist/internal/kb"
	"github.com/orbit-labs/kbassist/internal/rag"
)

// Stats summarizes an ingestion run.
type Stats struct {
	Documents int
	Chunks    int
}

// Run executes the full ingestion pipeline against the configured backend.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Stats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	embedder, err := rag.NewOpenAIEmbedder(cfg.Embedding.Model, cfg.Embedding.Dimension)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to create embedder: %w", err)
	}

	docs, err := kb.LoadDirectory(cfg.Ingest.Dir, logger)
	if err != nil {
		return Stats{}, err
	}
	if len(docs) == 0 {
		return Stats{}, fmt.Errorf("no documents found in %q", cfg.Ingest.Dir)
	}

	splitter := kb.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	chunks := splitter.SplitDocuments(docs)
	logger.Info("split documents into chunks",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", cfg.Ingest.ChunkSize),
		zap.Int("chunk_overlap", cfg.Ingest.ChunkOverlap),
	)

	vectors, err := EmbedChunks(ctx, embedder, chunks, cfg.Ingest.BatchSize)
	if err != nil {
		return Stats{}, err
	}

	switch cfg.Index.Backend {
	case "milvus":
		index, err := rag.NewMilvusIndex(ctx, rag.MilvusConfig{
			Address:        cfg.Index.Milvus.Address,
			CollectionName: cfg.Index.Milvus.Collection,
			Dimension:      cfg.Embedding.Dimension,
			M:              16,
			EfConstruction: 256,
		})
		if err != nil {
			return Stats{}, err
		}
		defer index.Close()

		if err := index.Rebuild(ctx, chunks, vectors); err != nil {
			return Stats{}, fmt.Errorf("failed to rebuild milvus collection: %w", err)
		}
	default:
		index, err := rag.BuildFlatIndex(cfg.Embedding.Model, cfg.Embedding.Dimension, chunks, vectors)
		if err != nil {
			return Stats{}, err
		}
		if err := index.Save(cfg.Index.Path); err != nil {
			return Stats{}, err
		}
	}

	logger.Info("index built",
		zap.String("backend", cfg.Index.Backend),
		zap.Int("chunks", len(chunks)),
	)

	return Stats{Documents: len(docs), Chunks: len(chunks)}, nil
}

// EmbedChunks embeds chunk contents in batches, preserving chunk order.
func EmbedChunks(ctx context.Context, embedder rag.Embedder, chunks []kb.Chunk, batchSize int) ([][]float32, error) {
	if batchSize < 1 {
		batchSize = 32
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i, ch := range chunks[start:end] {
			texts[i] = ch.Content
		}

		batch, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", start, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedding batch starting at %d returned %d vectors, want %d", start, len(batch), len(texts))
		}

		vectors = append(vectors, batch...)
	}

	return vectors, nil
}
