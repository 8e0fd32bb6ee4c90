// Package generation wraps the text generation model: a provider-agnostic
// LLM interface with an OpenAI implementation and a deterministic mock for
// testing, plus the prompt template and the answer extractor that isolates
// the assistant's reply from raw model output.
package generation

import (
	"context"
	"errors"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe. A single invocation
// per query: no retry logic and no internal timeout (callers impose one
// externally where needed).
type LLM interface {
	// Generate produces a continuation for the prompt using the configured
	// model. The adapter normalizes whatever shape the underlying model
	// returns into an Output before anything downstream sees it.
	Generate(ctx context.Context, prompt string) (Output, error)
}

// Output normalizes the model's return shape: a single text or a ranked
// list of candidate continuations. Downstream code only ever consumes the
// first candidate via Text.
type Output struct {
	candidates []string
}

// TextOutput wraps a single continuation.
func TextOutput(text string) Output {
	return Output{candidates: []string{text}}
}

// CandidatesOutput wraps a ranked list of continuations, best first.
func CandidatesOutput(candidates []string) Output {
	return Output{candidates: candidates}
}

// Text returns the best continuation, or the empty string when the model
// produced nothing.
func (o Output) Text() string {
	if len(o.candidates) == 0 {
		return ""
	}
	return o.candidates[0]
}

// Candidates returns all continuations, best first.
func (o Output) Candidates() []string {
	return o.candidates
}

// LLMConfig holds common configuration options for LLM providers.
type LLMConfig struct {
	// Model specifies the model identifier (e.g., "gpt-4o", "gpt-4o-mini")
	Model string

	// Temperature controls randomness (0.0 = deterministic)
	Temperature float32

	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// APIKey is the authentication key for the provider
	APIKey string
}

// DefaultLLMConfig returns sensible defaults for grounded answering.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0, // model default
		MaxTokens:   512,
	}
}
