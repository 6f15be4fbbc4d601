package providers

import (
	"strings"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

// Transport is the configured wire type of a provider.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// TransportSpec is the metadata record for one provider transport.
type TransportSpec struct {
	Type        Transport
	Aliases     []string
	Kind        schema.ProviderKind
	DisplayName string

	// Detect claims a config that has no explicit type.
	Detect func(Config) bool
	build  func(f *Factory, name string, cfg Config) (Adapter, error)
}

// ---------------------------------------------------------------------------
// Transports, in detection priority order for untyped configs.
// ---------------------------------------------------------------------------

var Transports = []TransportSpec{
	{
		Type:        TransportStdio,
		Aliases:     []string{"stdio-mcp", "command"},
		Kind:        schema.KindStdio,
		DisplayName: "Stdio MCP",
		Detect:      func(c Config) bool { return strings.TrimSpace(c.Command) != "" },
		build:       (*Factory).newStdio,
	},
	{
		Type:        TransportHTTP,
		Aliases:     []string{"http-mcp", "bridge"},
		Kind:        schema.KindHTTP,
		DisplayName: "HTTP bridge",
		Detect:      func(c Config) bool { return strings.TrimSpace(c.BaseURL) != "" },
		build:       (*Factory).newHTTP,
	},
}

// FindTransport looks a transport up by type or alias, case-insensitively.
func FindTransport(name string) (TransportSpec, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, spec := range Transports {
		if string(spec.Type) == name {
			return spec, true
		}
		for _, alias := range spec.Aliases {
			if alias == name {
				return spec, true
			}
		}
	}
	return TransportSpec{}, false
}

// Label returns the display name, defaulting to the type.
func (s TransportSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return string(s.Type)
}
