package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orbit-labs/kbassist/internal/eval"
	"github.com/orbit-labs/kbassist/internal/pipeline"
)

var (
	evalDataPath    string
	evalResultsPath string
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run the evaluation harness over a question set",
	Long: `Run every question from the evaluation CSV through the pipeline and write
the answers, retrieved sources, and response times to a results CSV.

Input CSV columns: question,expected_answer_snippet,is_in_kb
The results file carries blank manual assessment columns for review.`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringVar(&evalDataPath, "data", "data/evaluation_data.csv", "Path to the evaluation questions CSV")
	evalCmd.Flags().StringVar(&evalResultsPath, "out", "data/evaluation_results.csv", "Path for the results CSV")
}

func runEval(cmd *cobra.Command, args []string) error {
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

	questions, err := eval.LoadQuestions(evalDataPath)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	p, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}
	defer p.Close()

	fmt.Println(sourceStyle.Render(fmt.Sprintf("Evaluating %d questions...", len(questions))))

	records := eval.Run(ctx, p, questions, logger)
	if err := eval.WriteRecords(evalResultsPath, records); err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	s := eval.Summarize(records, p.Refusal())
	fmt.Println(headerStyle.Render("Evaluation complete."))
	fmt.Printf("  In-KB questions containing expected snippet: %d/%d\n", s.InKBAnswered, s.InKB)
	fmt.Printf("  Out-of-KB questions refused: %d/%d\n", s.OutOfKBRefused, s.OutOfKB)
	fmt.Println(sourceStyle.Render(fmt.Sprintf("Results written to %s; fill in the manual_ columns for the qualitative review.", evalResultsPath)))
	return nil
}
