package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imezh/RAG-agent/cmd/docqa/app/options"
)

func newIndexCommand(opts *options.ServerOptions) *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "index <directory>",
		Short: "Index documents from a directory",
		Long: `Parses, chunks and embeds every supported document under the given
directory and stores the result in the vector store. Supported formats:
PDF, DOCX, Markdown and plain text.`,
		Args: cobra.ExactArgs(1),
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

			report, err := service.IndexDirectory(ctx, args[0], clear)
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}

			cmd.Printf("Files found:   %d\n", report.FilesFound)
			cmd.Printf("Files indexed: %d\n", report.FilesIndexed)
			cmd.Printf("Chunks added:  %d\n", report.ChunksAdded)
			if report.FilesFailed > 0 {
				cmd.Printf("Files failed:  %d\n", report.FilesFailed)
				for _, failure := range report.Failed {
					cmd.Printf("  - %s\n", failure)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "clear the collection before indexing")
	return cmd
}
