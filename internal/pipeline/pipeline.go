// Package pipeline composes embedding, retrieval, the relevance gate,
// prompt construction, generation, and answer extraction into the
// end-to-end query contract. One Pipeline instance is built at process
// start, holds the loaded models and index for its lifetime, and serves
// concurrent queries without shared mutable state.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/orbit-labs/kbassist/internal/config"
	"github.com/orbit-labs/kbassist/internal/generation"
	"github.com/orbit-labs/kbassist/internal/kb"
	"github.com/orbit-labs/kbassist/internal/rag"
)

// PromptForInput is returned for an empty or whitespace-only question,
// without touching the index or the model.
const PromptForInput = "Please enter a question."

// queryErrorPrefix prefixes the per-query error answer for failures during
// retrieval or generation. The failure is reported once, never retried:
// re-invoking an expensive model on a possibly persistent failure is not
// safe to do silently.
const queryErrorPrefix = "An error occurred during query: "

// Result is the outcome of one query. UsedChunks holds the chunks whose
// content conditioned the generated answer: exactly one on the answered
// path, none on the refusal and error paths.
type Result struct {
	Answer     string     `json:"answer"`
	UsedChunks []kb.Chunk `json:"used_chunks"`
}

// Pipeline is the long-lived query orchestrator.
type Pipeline struct {
	cfg       *config.Config
	index     rag.Index
	retriever *rag.Retriever
	llm       generation.LLM
	template  *generation.PromptTemplate
	logger    *zap.Logger
}

// New builds the production pipeline: OpenAI embedder, persisted index
// (flat file or Milvus per config), and OpenAI generation model. Any
// failure here is fatal; the pipeline must never exist half-initialized.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	embedder, err := rag.NewOpenAIEmbedder(cfg.Embedding.Model, cfg.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	var index rag.Index
	switch cfg.Index.Backend {
	case "milvus":
		index, err = rag.NewMilvusIndex(ctx, rag.MilvusConfig{
			Address:        cfg.Index.Milvus.Address,
			CollectionName: cfg.Index.Milvus.Collection,
			Dimension:      cfg.Embedding.Dimension,
			M:              16,
			EfConstruction: 256,
		})
	default:
		index, err = rag.LoadFlatIndex(cfg.Index.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	llm, err := generation.NewOpenAILLM(generation.LLMConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to create LLM: %w", err)
	}

	p, err := Assemble(cfg, embedder, index, llm, logger)
	if err != nil {
		index.Close()
		return nil, err
	}
	return p, nil
}

// Assemble wires a pipeline from already-constructed components. Used by
// New and by tests that substitute mocks.
func Assemble(cfg *config.Config, embedder rag.Embedder, index rag.Index, llm generation.LLM, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	retriever, err := rag.NewRetriever(embedder, index)
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	template, err := generation.NewPromptTemplate(cfg.Prompt.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}

	return &Pipeline{
		cfg:       cfg,
		index:     index,
		retriever: retriever,
		llm:       llm,
		template:  template,
		logger:    logger,
	}, nil
}

// Query answers a natural-language question from the knowledge base.
//
// The flow is a single pass: top-1 similarity search, relevance gate on
// exactly that candidate, then either generation conditioned on the chunk
// or the canned refusal. Per-query failures are reported in the answer
// field and never crash the process or leak into later queries.
func (p *Pipeline) Query(ctx context.Context, question string) Result {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{Answer: PromptForInput, UsedChunks: []kb.Chunk{}}
	}

	p.logger.Debug("processing query", zap.String("question", question))

	// Retrieval: exactly one top-1 similarity search.
	scored, err := p.retriever.Search(ctx, question, 1)
	if err != nil {
		p.logger.Error("retrieval failed", zap.Error(err))
		return errorResult(err)
	}

	if len(scored) == 0 {
		p.logger.Info("index returned no results, refusing")
		return p.refuse()
	}

	// Gating: the only thing standing between the system and ungrounded
	// generation. Evaluated once, before any generation work.
	top := scored[0]
	decision := rag.Gate(top.Distance, p.cfg.Retrieval.ThresholdL2)
	p.logger.Debug("relevance decision",
		zap.Bool("admit", decision.Admit),
		zap.Float64("distance", decision.Distance),
		zap.Float64("threshold", decision.Threshold),
		zap.String("source", top.Chunk.Source),
	)
	if !decision.Admit {
		p.logger.Info("top chunk rejected by relevance gate",
			zap.Float64("distance", decision.Distance),
			zap.Float64("threshold", decision.Threshold),
		)
		return p.refuse()
	}

	// Generation: single invocation, no retries.
	prompt := p.template.Render(top.Chunk.Content, question)
	out, err := p.llm.Generate(ctx, prompt)
	if err != nil {
		p.logger.Error("generation failed", zap.Error(err))
		return errorResult(err)
	}

	answer := generation.Clean(out.Text(), prompt)
	return Result{
		Answer:     answer,
		UsedChunks: []kb.Chunk{top.Chunk},
	}
}

// Candidates retrieves the configured top-k chunks that pass the relevance
// threshold, for diagnostic display by the evaluation harness. Never used
// on the serving path.
func (p *Pipeline) Candidates(ctx context.Context, question string) ([]kb.ScoredChunk, error) {
	return p.retriever.Candidates(ctx, question, p.cfg.Retrieval.TopK, p.cfg.Retrieval.ThresholdL2)
}

// Refusal returns the configured refusal sentence.
func (p *Pipeline) Refusal() string {
	return p.cfg.Prompt.Refusal
}

// Close releases resources held by the pipeline.
func (p *Pipeline) Close() error {
	if p.index != nil {
		return p.index.Close()
	}
	return nil
}

func (p *Pipeline) refuse() Result {
	return Result{Answer: p.cfg.Prompt.Refusal, UsedChunks: []kb.Chunk{}}
}

func errorResult(err error) Result {
	return Result{
		Answer:     queryErrorPrefix + err.Error(),
		UsedChunks: []kb.Chunk{},
	}
}
