package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/orbit-labs/kbassist/internal/pipeline"
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F780FF")).Bold(true)
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE9FD")).Italic(true)
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E9E9F4"))
	sourceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4")).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the knowledge base a question",
	Long: `Ask a natural language question against the ingested knowledge base.

The most relevant chunk is retrieved from the vector index; if its distance
is within the configured relevance threshold, the language model answers
using only that chunk, otherwise the assistant declines.

Required environment variables:
  OPENAI_API_KEY - OpenAI API key for embeddings and generation

Examples:
  kbassist ask "What is the Sun?"
  kbassist ask "What are the two moons of Mars?" --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer p.Close()

	fmt.Println()
	fmt.Println(headerStyle.Render("Question:"))
	fmt.Println(questionStyle.Render(question))
	fmt.Println()

	result := p.Query(ctx, question)

	fmt.Println(headerStyle.Render("Answer:"))
	fmt.Println(answerStyle.Render(strings.TrimSpace(result.Answer)))
	fmt.Println()

	printSources(result)
	return nil
}

func printSources(result pipeline.Result) {
	if len(result.UsedChunks) == 0 {
		fmt.Println(sourceStyle.Render("No knowledge base sources were used for this answer."))
		return
	}

	fmt.Println(headerStyle.Render("Sources Used:"))
	for i, ch := range result.UsedChunks {
		fmt.Println(sourceStyle.Render(fmt.Sprintf("  %d. %s (chunk %d)", i+1, filepath.Base(ch.Source), ch.ChunkID)))
	}
	fmt.Println()
}
