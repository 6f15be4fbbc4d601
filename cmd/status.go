package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show toolhub configuration and gateway status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfgPath := configPath()

	fmt.Printf("%s toolhub Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗ (using defaults)"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Printf("Gateway:   %s\n", cfg.Server.Addr())
	fmt.Printf("Bridge:    %s\n", cfg.Bridge.Addr())
	fmt.Printf("Creator:   %v\n\n", cfg.ToolCreator)

	fmt.Println("Configured providers:")
	if len(cfg.Providers) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range cfg.Providers {
		pc, err := p.Provider()
		if err != nil {
			fmt.Printf("  %-20s ✗ %v\n", p.Name, err)
			continue
		}
		spec, _ := pc.Resolve()
		fmt.Printf("  %-20s %s\n", p.Name, spec.Label())
	}
	if len(cfg.DynamicTools) > 0 {
		fmt.Println("\nDynamic tools:")
		for _, d := range cfg.DynamicTools {
			fmt.Printf("  %s\n", d.Name)
		}
	}

	client, err := gatewayClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		fmt.Printf("\nGateway:   ✗ not reachable (%v)\n", err)
		return nil
	}
	fmt.Printf("\nGateway:   ✓ %s, up %s, %d provider(s), %d tool(s)\n", health.Status, health.Uptime, health.Providers, health.Tools)

	probes, err := client.ProviderHealth(ctx)
	if err != nil {
		return err
	}
	for _, h := range probes {
		if h.Healthy {
			fmt.Printf("  %-20s ✓ %s\n", h.Name, h.Latency.Round(time.Millisecond))
		} else {
			fmt.Printf("  %-20s ✗ %s\n", h.Name, h.Error)
		}
	}
	return nil
}
