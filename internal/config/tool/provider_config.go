// Package tool holds the provider and dynamic tool sections of the config
// file and converts them into runtime definitions.
package tool

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crystaldolphin/toolhub/internal/bridge"
	"github.com/crystaldolphin/toolhub/internal/providers"
	"github.com/crystaldolphin/toolhub/internal/schema"
)

// ProviderConfig describes one provider started at boot.
type ProviderConfig struct {
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type,omitempty"`
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	Dir     string            `yaml:"dir,omitempty"`
	BaseURL string            `yaml:"base_url,omitempty"`
	Timeout string            `yaml:"timeout,omitempty"`
	Catalog []CatalogEntry    `yaml:"catalog,omitempty"`
}

// CatalogEntry is one tool served by an HTTP bridge.
type CatalogEntry struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	InputSchema yaml.Node `yaml:"input_schema,omitempty"`
}

// Provider converts the section into a provider config.
func (p ProviderConfig) Provider() (providers.Config, error) {
	cfg := providers.Config{
		Type:    p.Type,
		Command: p.Command,
		Args:    p.Args,
		Env:     p.Env,
		Dir:     p.Dir,
		BaseURL: p.BaseURL,
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return providers.Config{}, fmt.Errorf("%w: provider %q: timeout %q: %v", schema.ErrInvalidConfig, p.Name, p.Timeout, err)
		}
		cfg.Timeout = d
	}
	for _, e := range p.Catalog {
		raw, err := NodeJSON(&e.InputSchema)
		if err != nil {
			return providers.Config{}, fmt.Errorf("%w: provider %q: catalog entry %q: %v", schema.ErrInvalidConfig, p.Name, e.Name, err)
		}
		cfg.Catalog = append(cfg.Catalog, bridge.CatalogEntry{Name: e.Name, Description: e.Description, InputSchema: raw})
	}
	if _, err := cfg.Resolve(); err != nil {
		return providers.Config{}, fmt.Errorf("provider %q: %w", p.Name, err)
	}
	return cfg, nil
}
