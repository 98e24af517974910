package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imezh/RAG-agent/cmd/docqa/app/options"
)

func newServeCommand(opts *options.ServerOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the QA HTTP server",
		Long: `Starts the HTTP server exposing the QA API:

  POST /v1/qa/query            answer a question from indexed documents
  POST /v1/qa/index/directory  index documents from a local directory
  GET  /v1/qa/stats            knowledge base statistics
  GET  /healthz                liveness probe
  GET  /metrics                metrics in Prometheus text format`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx := setupSignalContext()

			server, err := cfg.NewServer(ctx)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			return server.Run(ctx)
		},
	}
}
