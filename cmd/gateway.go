package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crystaldolphin/toolhub/internal/dependency"
)

var (
	gatewayPort    int
	gatewayVerbose bool
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the toolhub gateway server",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().IntVarP(&gatewayPort, "port", "p", 0, "Gateway port (overrides config)")
	gatewayCmd.Flags().BoolVarP(&gatewayVerbose, "verbose", "v", false, "Verbose logging")
}

func runGateway(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if gatewayPort > 0 {
		cfg.Server.Port = gatewayPort
	}
	logger := setupLogging(cfg, gatewayVerbose)

	// Graceful shutdown context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := dependency.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	fmt.Printf("%s Starting toolhub gateway on %s...\n", logo, cfg.Server.Addr())
	if err := c.Boot(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: some providers or tools failed to load:\n%v\n", err)
	}
	fmt.Printf("✓ %d provider(s), %d tool(s)\n", len(c.Store().ListProviders()), len(c.Store().ListTools()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Gateway().Run(gctx) })
	if cfg.Heartbeat.Enabled {
		g.Go(func() error { return c.Heartbeat().Start(gctx) })
	}

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown+5*time.Second)
	defer cancel()
	if err := c.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "err", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", runErr)
		return runErr
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
