package generation

import (
	"context"
	"errors"
	"testing"
)

func TestOutput_Text(t *testing.T) {
	t.Run("single text", func(t *testing.T) {
		out := TextOutput("hello")
		if out.Text() != "hello" {
			t.Errorf("got %q", out.Text())
		}
	})

	t.Run("candidates use first", func(t *testing.T) {
		out := CandidatesOutput([]string{"best", "second"})
		if out.Text() != "best" {
			t.Errorf("got %q", out.Text())
		}
		if len(out.Candidates()) != 2 {
			t.Errorf("expected 2 candidates, got %d", len(out.Candidates()))
		}
	})

	t.Run("empty output", func(t *testing.T) {
		var out Output
		if out.Text() != "" {
			t.Errorf("expected empty string, got %q", out.Text())
		}
	})
}

func TestMockLLM_RecordsPrompts(t *testing.T) {
	mock := NewMockLLM("fixed answer")

	out, err := mock.Generate(context.Background(), "first prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text() != "fixed answer" {
		t.Errorf("got %q", out.Text())
	}

	mock.Generate(context.Background(), "second prompt")

	if mock.CallCount() != 2 {
		t.Errorf("expected 2 calls, got %d", mock.CallCount())
	}
	if mock.LastPrompt() != "second prompt" {
		t.Errorf("got %q", mock.LastPrompt())
	}
}

func TestMockLLM_Error(t *testing.T) {
	wantErr := errors.New("model exploded")
	mock := NewMockLLMWithError(wantErr)

	_, err := mock.Generate(context.Background(), "p")
	if !errors.Is(err, wantErr) {
		t.Errorf("expected configured error, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("error calls must still be recorded, got %d", mock.CallCount())
	}
}

func TestNewOpenAILLM_Validation(t *testing.T) {
	t.Run("missing model", func(t *testing.T) {
		_, err := NewOpenAILLM(LLMConfig{APIKey: "sk-test"})
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
