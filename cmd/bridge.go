package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/toolhub/internal/bridge"
)

var (
	bridgePort    int
	bridgeDocker  string
	bridgeVerbose bool
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve the MCP HTTP bridge in front of `docker mcp tools call`",
	RunE:  runBridge,
}

func init() {
	bridgeCmd.Flags().IntVarP(&bridgePort, "port", "p", 0, "Bridge port (overrides config)")
	bridgeCmd.Flags().StringVar(&bridgeDocker, "docker", "", "docker binary (overrides config)")
	bridgeCmd.Flags().BoolVarP(&bridgeVerbose, "verbose", "v", false, "Verbose logging")
}

func runBridge(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if bridgePort > 0 {
		cfg.Bridge.Port = bridgePort
	}
	if bridgeDocker != "" {
		cfg.Bridge.Docker = bridgeDocker
	}
	logger := setupLogging(cfg, bridgeVerbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := bridge.NewServer(bridge.DockerRunner{Binary: cfg.Bridge.Docker}, logger)
	fmt.Printf("%s MCP HTTP bridge on %s (docker: %s)\n", logo, cfg.Bridge.Addr(), cfg.Bridge.Docker)

	if err := srv.ListenAndServe(ctx, cfg.Bridge.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
