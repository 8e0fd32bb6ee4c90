package generation

import (
	"fmt"
	"strings"
)

// RefusalSentence is the exact sentence the model is instructed to emit when
// the context cannot answer the question, and the sentence the pipeline
// returns when the relevance gate rejects the top chunk. The two paths must
// be byte-identical so callers cannot tell "model declined" from "gate
// declined"; both are presented the same way to the end user.
const RefusalSentence = "I'm sorry, but I don't have enough information to answer that based on the provided knowledge base."

// DefaultPromptTemplate restricts the model to the supplied context, mandates
// the refusal sentence verbatim when the context is insufficient, and forbids
// outside knowledge.
const DefaultPromptTemplate = `You are a helpful assistant. Your task is to answer the user's question ONLY based on the provided context.
If the context does not contain enough information to answer the question, or if the question is outside the scope of the provided context,
you MUST respond with: "` + RefusalSentence + `"
DO NOT invent information or use your general knowledge. Focus strictly on the provided context.

Context:
{context}

Question: {question}

Answer:`

// PromptTemplate renders a fixed instructional template with injected
// context and question.
type PromptTemplate struct {
	template string
}

// NewPromptTemplate validates that the template carries both placeholders.
func NewPromptTemplate(template string) (*PromptTemplate, error) {
	if !strings.Contains(template, "{context}") {
		return nil, fmt.Errorf("prompt template missing {context} placeholder")
	}
	if !strings.Contains(template, "{question}") {
		return nil, fmt.Errorf("prompt template missing {question} placeholder")
	}
	return &PromptTemplate{template: template}, nil
}

// Render substitutes the context and question into the template.
func (t *PromptTemplate) Render(context, question string) string {
	prompt := strings.ReplaceAll(t.template, "{context}", context)
	return strings.ReplaceAll(prompt, "{question}", question)
}
