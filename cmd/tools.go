package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/toolhub/internal/gateway"
)

var (
	serverFlag string
	toolsJSON  bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools registered in a running gateway",
	RunE:  runTools,
}

var callCmd = &cobra.Command{
	Use:   "call <tool> [json-args]",
	Short: "Invoke a tool through a running gateway",
	Example: `  toolhub call sample__get_weather '{"city":"london"}'
  toolhub call tool-creator '{"name":"add","code":"return a + b","parameters":{"type":"object","properties":{"a":{"type":"number"},"b":{"type":"number"}}}}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func init() {
	for _, c := range []*cobra.Command{toolsCmd, callCmd, statusCmd} {
		c.Flags().StringVarP(&serverFlag, "server", "s", "", "gateway address (default from config)")
	}
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print raw JSON")
}

func gatewayClient() (*gateway.Client, error) {
	if serverFlag != "" {
		return gateway.NewClient(serverFlag, 0), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return gateway.NewClient(cfg.Server.Addr(), cfg.Timeouts.Invoke+cfg.Timeouts.Handshake), nil
}

func runTools(cmd *cobra.Command, _ []string) error {
	client, err := gatewayClient()
	if err != nil {
		return err
	}
	tools, err := client.ListTools(cmd.Context())
	if err != nil {
		return err
	}

	if toolsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}
	if len(tools) == 0 {
		fmt.Println("No tools registered.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tPROVIDER\tPARAMS\tDESCRIPTION")
	for _, t := range tools {
		var params string
		if t.Parameters != nil {
			params = strings.Join(t.Parameters.Names(), ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.Name, t.Kind, t.Provider, params, truncStr(t.Description, 60))
	}
	return tw.Flush()
}

func runCall(cmd *cobra.Command, args []string) error {
	toolArgs := map[string]any{}
	if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	client, err := gatewayClient()
	if err != nil {
		return err
	}
	res, err := client.Invoke(cmd.Context(), args[0], toolArgs)
	if err != nil {
		return err
	}
	fmt.Println(res.Text)
	if res.IsError {
		return fmt.Errorf("tool %q reported a failure", args[0])
	}
	return nil
}

func truncStr(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
