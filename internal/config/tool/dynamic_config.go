package tool

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

// DynamicToolConfig is a JavaScript tool defined in the config file.
// Parameters is a JSON Schema object written as YAML.
type DynamicToolConfig struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Parameters  yaml.Node `yaml:"parameters,omitempty"`
	Code        string    `yaml:"code"`
}

// ParsedParameters returns the declared parameter schema.
func (d DynamicToolConfig) ParsedParameters() (*schema.Parameters, error) {
	raw, err := NodeJSON(&d.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%w: dynamic tool %q: %v", schema.ErrInvalidConfig, d.Name, err)
	}
	p, err := schema.ParseParameters(raw)
	if err != nil {
		return nil, fmt.Errorf("dynamic tool %q: %w", d.Name, err)
	}
	return p, nil
}
