// Package config loads the assistant configuration from a YAML file with
// environment variable overrides, applies defaults, and validates the result
// before any model or index is loaded.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/orbit-labs/kbassist/internal/generation"
)

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Model     string `yaml:"model" validate:"required"`
	Dimension int    `yaml:"dimension" validate:"gte=1"`
}

// LLMConfig selects the generation model.
type LLMConfig struct {
	Model       string  `yaml:"model" validate:"required"`
	Temperature float32 `yaml:"temperature" validate:"gte=0"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=0"`
}

// MilvusConfig contains connection details for the Milvus index backend.
type MilvusConfig struct {
	Address    string `yaml:"address"`
	Collection string `yaml:"collection"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	// Backend is "flat" (default, persisted on disk) or "milvus".
	Backend string       `yaml:"backend" validate:"oneof=flat milvus"`
	Path    string       `yaml:"path" validate:"required"`
	Milvus  MilvusConfig `yaml:"milvus"`
}

// RetrievalConfig controls the relevance gate and candidate retrieval.
type RetrievalConfig struct {
	// ThresholdL2 is the maximum L2 distance at which the top chunk is still
	// trusted enough to answer from.
	ThresholdL2 float64 `yaml:"threshold_l2" validate:"gte=0"`

	// TopK is the number of candidates retrieved for diagnostics.
	TopK int `yaml:"top_k" validate:"gte=1"`
}

// PromptConfig carries the instructional template and the refusal sentence.
type PromptConfig struct {
	Template string `yaml:"template" validate:"required"`
	Refusal  string `yaml:"refusal" validate:"required"`
}

// IngestConfig controls knowledge-base loading and chunking.
type IngestConfig struct {
	Dir          string `yaml:"dir" validate:"required"`
	ChunkSize    int    `yaml:"chunk_size" validate:"gte=1"`
	ChunkOverlap int    `yaml:"chunk_overlap" validate:"gte=0"`
	BatchSize    int    `yaml:"batch_size" validate:"gte=1"`
}

// ServerConfig configures the HTTP serving surface.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`

	// RequestTimeoutSecs bounds an in-flight request externally; generation
	// itself imposes no timeout.
	RequestTimeoutSecs int `yaml:"request_timeout_secs" validate:"gte=1"`
}

// Config is the root configuration consumed by the pipeline, ingestion,
// evaluation, and the server.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 512,
		},
		Index: IndexConfig{
			Backend: "flat",
			Path:    "data/index.json",
			Milvus: MilvusConfig{
				Address:    "localhost:19530",
				Collection: "kbassist_chunks",
			},
		},
		Retrieval: RetrievalConfig{
			ThresholdL2: 0.7,
			TopK:        3,
		},
		Prompt: PromptConfig{
			Template: generation.DefaultPromptTemplate,
			Refusal:  generation.RefusalSentence,
		},
		Ingest: IngestConfig{
			Dir:          "data/knowledge_base",
			ChunkSize:    500,
			ChunkOverlap: 50,
			BatchSize:    32,
		},
		Server: ServerConfig{
			Addr:               ":8080",
			RequestTimeoutSecs: 120,
		},
	}
}

// Load reads the config from path. A missing file yields defaults; a present
// but unreadable or invalid file is an error. Environment overrides are
// applied after the file, then the whole config is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config against its struct tags plus the constraints
// the tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return fmt.Errorf("invalid config: chunk_overlap %d must be smaller than chunk_size %d",
			cfg.Ingest.ChunkOverlap, cfg.Ingest.ChunkSize)
	}
	if _, err := generation.NewPromptTemplate(cfg.Prompt.Template); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// The model-decline path emits the sentence the template instructs, the
	// gate-decline path emits cfg.Prompt.Refusal. They must be the same bytes.
	if !strings.Contains(cfg.Prompt.Template, cfg.Prompt.Refusal) {
		return fmt.Errorf("invalid config: refusal sentence must appear verbatim in the prompt template")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KBASSIST_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("KBASSIST_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("KBASSIST_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv("KBASSIST_KB_DIR"); v != "" {
		cfg.Ingest.Dir = v
	}
	if v := os.Getenv("KBASSIST_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		cfg.Index.Milvus.Address = v
	}
	if v := os.Getenv("KBASSIST_THRESHOLD_L2"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retrieval.ThresholdL2 = f
		}
	}
	if v := os.Getenv("KBASSIST_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retrieval.TopK = n
		}
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Prompt.Template == "" {
		cfg.Prompt.Template = def.Prompt.Template
	}
	if cfg.Prompt.Refusal == "" {
		cfg.Prompt.Refusal = def.Prompt.Refusal
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = def.Index.Backend
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = def.Ingest.BatchSize
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = def.Server.RequestTimeoutSecs
	}
}
