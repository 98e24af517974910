package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imezh/RAG-agent/cmd/docqa/app/options"
)

func newQueryCommand(opts *options.ServerOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question against the indexed documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx := setupSignalContext()

			service, closeService, err := cfg.NewService(ctx)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			defer closeService()

			result, err := service.Query(ctx, args[0])
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			cmd.Println(result.Answer)
			if len(result.Sources) > 0 {
				cmd.Println()
				cmd.Println("Sources:")
				for i, src := range result.Sources {
					line := fmt.Sprintf("  [%d] %s", i+1, src.DocumentName)
					if src.Page > 0 {
						line += fmt.Sprintf(", p. %d", src.Page)
					}
					line += fmt.Sprintf(" (score %.2f)", src.Score)
					cmd.Println(line)
				}
			}
			return nil
		},
	}
}
