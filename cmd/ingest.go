package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orbit-labs/kbassist/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the vector index from the knowledge base directory",
	Long: `Load documents from the configured knowledge base directory, split them
into overlapping chunks, embed the chunks, and persist the vector index.

Ingestion fully rebuilds the index; chunk IDs are reassigned on every run.

Supported file types: .txt, .md, .pdf`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	fmt.Println(sourceStyle.Render(fmt.Sprintf("Ingesting knowledge base from %s...", cfg.Ingest.Dir)))

	stats, err := ingest.Run(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf(
		"Indexed %d chunks from %d documents.", stats.Chunks, stats.Documents)))
	return nil
}
