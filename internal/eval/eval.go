// Package eval runs the evaluation harness: a CSV of questions (some
// answerable from the knowledge base, some deliberately outside it) is fed
// through the pipeline and the answers, retrieved sources, and response
// times are written back out for review.
package eval

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/orbit-labs/kbassist/internal/kb"
	"github.com/orbit-labs/kbassist/internal/pipeline"
)

// Question is one row of the evaluation input CSV.
type Question struct {
	Question        string
	ExpectedSnippet string
	IsInKB          bool
}

// Record is one row of the evaluation output: the input question plus what
// the pipeline actually did with it.
type Record struct {
	Question          string
	ExpectedSnippet   string
	IsInKB            bool
	AssistantAnswer   string
	RetrievedSources  []string
	RetrievedPreviews []string
	ResponseTimeSec   float64
}

// Answerer is the pipeline surface the harness needs. Satisfied by
// *pipeline.Pipeline.
type Answerer interface {
	Query(ctx context.Context, question string) pipeline.Result
	Candidates(ctx context.Context, question string) ([]kb.ScoredChunk, error)
	Refusal() string
}

// previewLen bounds the chunk content preview written to the results CSV.
const previewLen = 200

// LoadQuestions reads the evaluation input CSV. Expected header:
// question,expected_answer_snippet,is_in_kb.
func LoadQuestions(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("evaluation data file: %w", err)
	}
	defer f.Close()

	return ParseQuestions(f)
}

// ParseQuestions decodes evaluation questions from CSV.
func ParseQuestions(r io.Reader) ([]Question, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing evaluation csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("evaluation csv is empty")
	}

	questions := make([]Question, 0, len(rows)-1)
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row[0], "question") {
			continue // header
		}
		questions = append(questions, Question{
			Question:        row[0],
			ExpectedSnippet: row[1],
			IsInKB:          strings.EqualFold(strings.TrimSpace(row[2]), "true"),
		})
	}
	return questions, nil
}

// Run feeds every question through the pipeline and collects records.
func Run(ctx context.Context, p Answerer, questions []Question, logger *zap.Logger) []Record {
	if logger == nil {
		logger = zap.NewNop()
	}

	records := make([]Record, 0, len(questions))
	for i, q := range questions {
		logger.Info("evaluating question",
			zap.Int("index", i+1),
			zap.Int("total", len(questions)),
			zap.String("question", q.Question),
			zap.Bool("is_in_kb", q.IsInKB),
		)

		start := time.Now()
		result := p.Query(ctx, q.Question)
		elapsed := time.Since(start).Seconds()

		rec := Record{
			Question:        q.Question,
			ExpectedSnippet: q.ExpectedSnippet,
			IsInKB:          q.IsInKB,
			AssistantAnswer: result.Answer,
			ResponseTimeSec: elapsed,
		}

		// The answer is conditioned on at most one chunk, but the results
		// file records every candidate within the relevance threshold so the
		// reviewer can judge retrieval quality, not just the final pick.
		candidates, err := p.Candidates(ctx, q.Question)
		if err != nil {
			logger.Warn("candidate retrieval failed",
				zap.String("question", q.Question),
				zap.Error(err),
			)
			for _, ch := range result.UsedChunks {
				rec.RetrievedSources = append(rec.RetrievedSources, filepath.Base(ch.Source))
				rec.RetrievedPreviews = append(rec.RetrievedPreviews, preview(ch.Content))
			}
		}
		for _, sc := range candidates {
			rec.RetrievedSources = append(rec.RetrievedSources, filepath.Base(sc.Chunk.Source))
			rec.RetrievedPreviews = append(rec.RetrievedPreviews, preview(sc.Chunk.Content))
		}

		records = append(records, rec)
	}
	return records
}

// WriteRecords writes the results CSV, creating parent directories as
// needed. Manual assessment columns are left blank for the reviewer.
func WriteRecords(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"question", "expected_answer_snippet", "is_in_kb",
		"assistant_answer", "retrieved_source_filenames", "retrieved_chunk_contents_preview",
		"response_time_sec",
		"manual_retrieval_relevance", "manual_answer_accuracy",
		"manual_grounding_faithfulness", "manual_overall_pass",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.Question,
			rec.ExpectedSnippet,
			strings.ToUpper(fmt.Sprintf("%t", rec.IsInKB)),
			rec.AssistantAnswer,
			strings.Join(rec.RetrievedSources, "; "),
			strings.Join(rec.RetrievedPreviews, "; "),
			fmt.Sprintf("%.2f", rec.ResponseTimeSec),
			"", "", "", "",
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// Summary aggregates pass/fail counts over the records against the
// refusal behavior: in-KB questions should contain their expected snippet,
// out-of-KB questions should get exactly the refusal sentence.
type Summary struct {
	Total          int
	InKB           int
	InKBAnswered   int
	OutOfKB        int
	OutOfKBRefused int
}

// Summarize computes a Summary using the given refusal sentence.
func Summarize(records []Record, refusal string) Summary {
	var s Summary
	s.Total = len(records)
	for _, rec := range records {
		if rec.IsInKB {
			s.InKB++
			if rec.ExpectedSnippet != "" && rec.ExpectedSnippet != "N/A" &&
				strings.Contains(strings.ToLower(rec.AssistantAnswer), strings.ToLower(rec.ExpectedSnippet)) {
				s.InKBAnswered++
			}
		} else {
			s.OutOfKB++
			if rec.AssistantAnswer == refusal {
				s.OutOfKBRefused++
			}
		}
	}
	return s
}

func preview(content string) string {
	if len(content) <= previewLen {
		return content
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
