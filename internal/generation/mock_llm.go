package generation

import (
	"context"
	"sync"
)

// MockLLM is a deterministic LLM implementation for testing.
// It records every prompt it receives and returns a fixed output.
type MockLLM struct {
	mu sync.Mutex

	// Response is the fixed output returned by Generate.
	Response Output

	// Error, if set, is returned by Generate instead of a response.
	Error error

	// Prompts stores every prompt passed to Generate, in call order.
	Prompts []string
}

// NewMockLLM creates a mock LLM that returns the given text.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{Response: TextOutput(response)}
}

// NewMockLLMWithError creates a mock LLM that always returns an error.
func NewMockLLMWithError(err error) *MockLLM {
	return &MockLLM{Error: err}
}

// Generate records the prompt and returns the configured output or error.
func (m *MockLLM) Generate(ctx context.Context, prompt string) (Output, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	if m.Error != nil {
		return Output{}, m.Error
	}
	return m.Response, nil
}

// CallCount returns how many times Generate was invoked.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// LastPrompt returns the most recent prompt, or "" if none.
func (m *MockLLM) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Prompts) == 0 {
		return ""
	}
	return m.Prompts[len(m.Prompts)-1]
}
