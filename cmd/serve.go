package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orbit-labs/kbassist/internal/pipeline"
	"github.com/orbit-labs/kbassist/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assistant over HTTP",
	Long: `Start an HTTP server exposing the query pipeline.

Endpoints:
  POST /api/ask  {"question": "..."}  -> {"answer": "...", "sources": [...]}
  GET  /healthz

The pipeline is initialized once at startup; initialization failures
(missing index, missing API key) abort before the server starts listening.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	fmt.Println(headerStyle.Render(fmt.Sprintf("Serving on %s", cfg.Server.Addr)))

	return server.New(p, cfg, logger).ListenAndServe(ctx)
}
