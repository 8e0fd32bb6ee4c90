package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/orbit-labs/kbassist/internal/kb"
)

// Common errors for Milvus operations
var (
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrInsertFailed     = errors.New("failed to insert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
	ErrEmptyRecords     = errors.New("no records provided for insertion")
)

// MilvusConfig holds configuration for Milvus connection and collection.
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	CollectionName string // Name of the collection
	Dimension      int    // Vector dimension

	// HNSW index parameters
	M              int // HNSW M parameter (default: 16)
	EfConstruction int // HNSW efConstruction (default: 256)
}

// DefaultMilvusConfig returns sensible defaults for a local Milvus.
func DefaultMilvusConfig(dimension int) MilvusConfig {
	return MilvusConfig{
		Address:        "localhost:19530",
		CollectionName: "kbassist_chunks",
		Dimension:      dimension,
		M:              16,
		EfConstruction: 256,
	}
}

// MilvusIndex implements Index backed by a Milvus collection using the L2
// metric, for deployments where the knowledge base outgrows the flat index.
type MilvusIndex struct {
	client client.Client
	config MilvusConfig
}

// NewMilvusIndex connects to Milvus and ensures the chunk collection exists.
// A failed connection is a construction-time failure.
func NewMilvusIndex(ctx context.Context, config MilvusConfig) (*MilvusIndex, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, config.Dimension)
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	idx := &MilvusIndex{
		client: c,
		config: config,
	}

	if err := idx.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return idx, nil
}

// ensureCollection creates the collection with schema if it doesn't exist.
func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.config.CollectionName,
		AutoID:         true,
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			{
				Name:     "chunk_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.config.Dimension),
				},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.L2, m.config.M, m.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.config.CollectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

// Rebuild drops any existing collection contents and inserts the given
// chunks. Ingestion fully rebuilds the index rather than patching it.
func (m *MilvusIndex) Rebuild(ctx context.Context, chunks []kb.Chunk, vectors [][]float32) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if has {
		if err := m.client.DropCollection(ctx, m.config.CollectionName); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}
	if err := m.ensureCollection(ctx); err != nil {
		return err
	}
	return m.insert(ctx, chunks, vectors)
}

func (m *MilvusIndex) insert(ctx context.Context, chunks []kb.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return ErrEmptyRecords
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	chunkIDs := make([]int64, len(chunks))
	sources := make([]string, len(chunks))
	contents := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))

	for i, ch := range chunks {
		chunkIDs[i] = int64(ch.ChunkID)
		sources[i] = ch.Source
		contents[i] = ch.Content
		embeddings[i] = vectors[i]
	}

	columns := []entity.Column{
		entity.NewColumnInt64("chunk_id", chunkIDs),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnFloatVector("embedding", m.config.Dimension, embeddings),
	}

	if _, err := m.client.Insert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}

	// Flush to ensure data is persisted before the reader starts serving
	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}

	return nil
}

// Search performs top-K similarity search, returning chunks ordered
// ascending by L2 distance.
func (m *MilvusIndex) Search(ctx context.Context, vector []float32, k int) ([]kb.ScoredChunk, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if len(vector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(vector), m.config.Dimension)
	}

	sp, err := entity.NewIndexHNSWSearchParam(64) // ef parameter for search
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	vectors := []entity.Vector{entity.FloatVector(vector)}
	outputFields := []string{"chunk_id", "source", "content"}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		"",
		outputFields,
		vectors,
		"embedding",
		entity.L2,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	if len(results) == 0 {
		return []kb.ScoredChunk{}, nil
	}

	chunks := make([]kb.ScoredChunk, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		sc := kb.ScoredChunk{
			// Milvus reports L2 distances as scores; lower is better.
			Distance: float64(results[0].Scores[i]),
		}

		for _, field := range results[0].Fields {
			switch field.Name() {
			case "chunk_id":
				sc.Chunk.ChunkID = int(field.(*entity.ColumnInt64).Data()[i])
			case "source":
				sc.Chunk.Source = field.(*entity.ColumnVarChar).Data()[i]
			case "content":
				sc.Chunk.Content = field.(*entity.ColumnVarChar).Data()[i]
			}
		}

		chunks = append(chunks, sc)
	}

	return chunks, nil
}

// Count returns the number of stored chunks, or 0 when statistics are
// unavailable.
func (m *MilvusIndex) Count() int {
	stats, err := m.client.GetCollectionStatistics(context.Background(), m.config.CollectionName)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0
	}
	return n
}

// Close releases the Milvus connection.
func (m *MilvusIndex) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}
