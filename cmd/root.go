// Package cmd implements the toolhub CLI using cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/toolhub/internal/config"
	"github.com/crystaldolphin/toolhub/internal/logging"
)

const version = "0.1.0"
const logo = "🧰"

var configFlag string

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "toolhub",
	Short: logo + " toolhub: one registry for MCP servers, HTTP bridges and scripted tools",
	Long: logo + ` toolhub runs tool providers (stdio MCP servers, HTTP tool bridges and
in-process scripted tools) behind a single named registry, and serves it over HTTP.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		"config file (default $"+config.EnvConfigPath+" or ~/.toolhub/config.yaml)")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(sampleProviderCmd)
}

func configPath() string {
	if configFlag != "" {
		return configFlag
	}
	return config.ConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config, verbose bool) *slog.Logger {
	lc := cfg.Logging
	if verbose {
		lc.Level = "debug"
	}
	return logging.Setup(lc, os.Stderr)
}
