package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/toolhub/internal/sampleprovider"
)

var sampleProviderCmd = &cobra.Command{
	Use:   "sample-provider",
	Short: "Run a demo stdio MCP server (get_weather, list_cities, echo)",
	Long: `Runs a small MCP server on stdin/stdout. Point a stdio provider at it:

  providers:
    - name: sample
      command: toolhub
      args: [sample-provider]`,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return sampleprovider.Run(ctx, "toolhub-sample")
	},
}
