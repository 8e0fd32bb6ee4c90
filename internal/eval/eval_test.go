package eval

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/orbit-labs/kbassist/internal/generation"
	"github.com/orbit-labs/kbassist/internal/kb"
	"github.com/orbit-labs/kbassist/internal/pipeline"
)

// stubAnswerer returns canned answers and candidates keyed by question.
type stubAnswerer struct {
	answers       map[string]pipeline.Result
	candidates    map[string][]kb.ScoredChunk
	candidatesErr error
}

func (s *stubAnswerer) Query(ctx context.Context, question string) pipeline.Result {
	if r, ok := s.answers[question]; ok {
		return r
	}
	return pipeline.Result{Answer: s.Refusal(), UsedChunks: []kb.Chunk{}}
}

func (s *stubAnswerer) Candidates(ctx context.Context, question string) ([]kb.ScoredChunk, error) {
	if s.candidatesErr != nil {
		return nil, s.candidatesErr
	}
	return s.candidates[question], nil
}

func (s *stubAnswerer) Refusal() string { return generation.RefusalSentence }

func TestParseQuestions(t *testing.T) {
	raw := `question,expected_answer_snippet,is_in_kb
What is the Sun?,center of the Solar System,true
What is the capital of France?,N/A,false
"How large, roughly, is Jupiter?",largest planet,TRUE
`
	questions, err := ParseQuestions(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}

	if questions[0].Question != "What is the Sun?" || !questions[0].IsInKB {
		t.Errorf("row 0: %+v", questions[0])
	}
	if questions[1].IsInKB {
		t.Errorf("row 1 should be out of KB: %+v", questions[1])
	}
	if questions[2].Question != "How large, roughly, is Jupiter?" || !questions[2].IsInKB {
		t.Errorf("quoted row mishandled: %+v", questions[2])
	}
}

func TestParseQuestions_Errors(t *testing.T) {
	if _, err := ParseQuestions(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := ParseQuestions(strings.NewReader("question,snippet\nonly,two\n")); err == nil {
		t.Error("expected error for wrong field count")
	}
}

func TestRun(t *testing.T) {
	sunChunk := kb.Chunk{
		Content: strings.Repeat("The Sun is the star at the center of the Solar System. ", 5),
		Source:  "data/knowledge_base/sun.txt",
		ChunkID: 0,
	}
	marsChunk := kb.Chunk{
		Content: "Mars has two moons, Phobos and Deimos.",
		Source:  "data/knowledge_base/mars.txt",
		ChunkID: 3,
	}

	answerer := &stubAnswerer{
		answers: map[string]pipeline.Result{
			"What is the Sun?": {
				Answer:     "The Sun is the star at the center of the Solar System.",
				UsedChunks: []kb.Chunk{sunChunk},
			},
		},
		candidates: map[string][]kb.ScoredChunk{
			"What is the Sun?": {
				{Chunk: sunChunk, Distance: 0.12},
				{Chunk: marsChunk, Distance: 0.65},
			},
		},
	}

	questions := []Question{
		{Question: "What is the Sun?", ExpectedSnippet: "center of the Solar System", IsInKB: true},
		{Question: "What is the capital of France?", ExpectedSnippet: "N/A", IsInKB: false},
	}

	records := Run(context.Background(), answerer, questions, nil)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.AssistantAnswer == "" {
		t.Error("answer missing")
	}
	// Every admitted candidate is recorded, not just the chunk that
	// conditioned the answer.
	if len(first.RetrievedSources) != 2 ||
		first.RetrievedSources[0] != "sun.txt" || first.RetrievedSources[1] != "mars.txt" {
		t.Errorf("sources should be base filenames of all candidates: %v", first.RetrievedSources)
	}
	if len(first.RetrievedPreviews) != 2 || len(first.RetrievedPreviews[0]) > 200 {
		t.Errorf("previews: %d entries, first is %d chars", len(first.RetrievedPreviews), len(first.RetrievedPreviews[0]))
	}
	if first.ResponseTimeSec < 0 {
		t.Error("negative response time")
	}

	second := records[1]
	if second.AssistantAnswer != generation.RefusalSentence {
		t.Errorf("out-of-KB answer: %q", second.AssistantAnswer)
	}
	if len(second.RetrievedSources) != 0 {
		t.Errorf("refusal should carry no sources: %v", second.RetrievedSources)
	}
}

func TestRun_CandidateFailureFallsBackToUsedChunks(t *testing.T) {
	answerer := &stubAnswerer{
		answers: map[string]pipeline.Result{
			"What is the Sun?": {
				Answer: "The Sun is a star.",
				UsedChunks: []kb.Chunk{{
					Content: "The Sun is the star at the center of the Solar System.",
					Source:  "data/knowledge_base/sun.txt",
					ChunkID: 0,
				}},
			},
		},
		candidatesErr: errors.New("index closed"),
	}

	records := Run(context.Background(), answerer,
		[]Question{{Question: "What is the Sun?", ExpectedSnippet: "star", IsInKB: true}}, nil)

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if len(records[0].RetrievedSources) != 1 || records[0].RetrievedSources[0] != "sun.txt" {
		t.Errorf("expected used-chunk fallback, got %v", records[0].RetrievedSources)
	}
}

func TestRun_PreviewKeepsRuneBoundaries(t *testing.T) {
	// 3-byte runes; 200 is not a multiple of 3, so a byte slice would cut
	// mid-rune.
	content := strings.Repeat("€", 150)
	answerer := &stubAnswerer{
		answers: map[string]pipeline.Result{
			"q": {Answer: "a", UsedChunks: []kb.Chunk{}},
		},
		candidates: map[string][]kb.ScoredChunk{
			"q": {{Chunk: kb.Chunk{Content: content, Source: "euro.txt"}, Distance: 0.1}},
		},
	}

	records := Run(context.Background(), answerer,
		[]Question{{Question: "q", ExpectedSnippet: "x", IsInKB: true}}, nil)

	if len(records) != 1 || len(records[0].RetrievedPreviews) != 1 {
		t.Fatalf("unexpected records: %+v", records)
	}
	p := records[0].RetrievedPreviews[0]
	if len(p) > 200 {
		t.Errorf("preview is %d bytes", len(p))
	}
	if !utf8.ValidString(p) {
		t.Errorf("preview is not valid UTF-8: %q", p)
	}
}

func TestWriteRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "evaluation_results.csv")

	records := []Record{
		{
			Question:          "What is the Sun?",
			ExpectedSnippet:   "center of the Solar System",
			IsInKB:            true,
			AssistantAnswer:   "The Sun is a star.",
			RetrievedSources:  []string{"sun.txt"},
			RetrievedPreviews: []string{"The Sun is the star at"},
			ResponseTimeSec:   1.234,
		},
		{
			Question:        "What is the capital of France?",
			ExpectedSnippet: "N/A",
			IsInKB:          false,
			AssistantAnswer: generation.RefusalSentence,
			ResponseTimeSec: 0.5,
		},
	}

	if err := WriteRecords(path, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("results csv unreadable: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}

	header := rows[0]
	for _, want := range []string{"question", "is_in_kb", "assistant_answer", "response_time_sec", "manual_overall_pass"} {
		found := false
		for _, col := range header {
			if col == want {
				found = true
			}
		}
		if !found {
			t.Errorf("header missing column %q", want)
		}
	}

	if rows[1][2] != "TRUE" || rows[2][2] != "FALSE" {
		t.Errorf("is_in_kb column should be uppercased: %q %q", rows[1][2], rows[2][2])
	}
	if rows[1][6] != "1.23" {
		t.Errorf("response time formatting: %q", rows[1][6])
	}
	// Manual assessment columns stay blank for the reviewer.
	for _, col := range rows[1][7:] {
		if col != "" {
			t.Errorf("manual column pre-filled: %q", col)
		}
	}
}

func TestSummarize(t *testing.T) {
	refusal := generation.RefusalSentence
	records := []Record{
		{IsInKB: true, ExpectedSnippet: "center of the Solar System", AssistantAnswer: "It sits at the CENTER of the solar system."},
		{IsInKB: true, ExpectedSnippet: "two moons", AssistantAnswer: "Mars is red."},
		{IsInKB: false, AssistantAnswer: refusal},
		{IsInKB: false, AssistantAnswer: "Paris is the capital of France."},
	}

	s := Summarize(records, refusal)

	if s.Total != 4 || s.InKB != 2 || s.OutOfKB != 2 {
		t.Errorf("counts: %+v", s)
	}
	if s.InKBAnswered != 1 {
		t.Errorf("snippet match should be case-insensitive: %+v", s)
	}
	if s.OutOfKBRefused != 1 {
		t.Errorf("refusal must match exactly: %+v", s)
	}
}
