package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orbit-labs/kbassist/internal/pipeline"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactively ask questions about the knowledge base",
	Long: `Start an interactive session against the ingested knowledge base.

Each question is answered independently; there is no conversation state.
Type 'exit' to quit.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
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

	fmt.Println(headerStyle.Render("Knowledge Base Assistant"))
	fmt.Println(sourceStyle.Render("Type your questions (or 'exit' to quit)."))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(question, "exit") {
			fmt.Println(sourceStyle.Render("Goodbye!"))
			break
		}

		result := p.Query(ctx, question)

		fmt.Println()
		fmt.Println(answerStyle.Render(result.Answer))
		if len(result.UsedChunks) > 0 {
			fmt.Println()
			printSources(result)
		}
	}

	return scanner.Err()
}
