package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crystaldolphin/toolhub/internal/config"
	"github.com/crystaldolphin/toolhub/internal/config/tool"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration with a sample provider and tool",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := configPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
		return nil
	}

	cfg := config.DefaultConfig()
	if err := addSamples(&cfg); err != nil {
		return err
	}
	if err := config.Save(&cfg, cfgPath); err != nil {
		return err
	}
	fmt.Printf("✓ Created config at %s\n", cfgPath)

	fmt.Printf("\n%s toolhub is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add providers to %s\n", cfgPath)
	fmt.Println("  2. Start the gateway: toolhub gateway")
	fmt.Println("  3. Try a tool:        toolhub call add '{\"a\":2,\"b\":3}'")
	return nil
}

// addSamples registers this binary's sample-provider as a stdio provider
// and one scripted tool, so a fresh install has something to call.
func addSamples(cfg *config.Config) error {
	self, err := os.Executable()
	if err != nil {
		self = "toolhub"
	}
	cfg.Providers = append(cfg.Providers, tool.ProviderConfig{
		Name:    "sample",
		Command: self,
		Args:    []string{"sample-provider"},
	})

	params, err := yamlNode(`
type: object
properties:
  a: {type: number, description: first addend}
  b: {type: number, description: second addend}
required: [a, b]
`)
	if err != nil {
		return err
	}
	cfg.DynamicTools = append(cfg.DynamicTools, tool.DynamicToolConfig{
		Name:        "add",
		Description: "Add two numbers",
		Parameters:  params,
		Code:        "return a + b;",
	})
	return nil
}

func yamlNode(src string) (yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return yaml.Node{}, err
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		return *doc.Content[0], nil
	}
	return doc, nil
}
