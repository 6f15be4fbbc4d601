package schema

import "time"

// ToolSummary is the wire form of a Tool used in listings and events.
type ToolSummary struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  *Parameters  `json:"parameters"`
	Kind        ProviderKind `json:"kind"`
	Provider    string       `json:"provider,omitempty"`
}

// ProviderSummary is the wire form of a live provider.
type ProviderSummary struct {
	Name      string       `json:"name"`
	Kind      ProviderKind `json:"kind"`
	Endpoint  string       `json:"endpoint"`
	ToolNames []string     `json:"tools"`
	Alive     bool         `json:"alive"`
}

// ProviderHealth is the outcome of one liveness probe.
type ProviderHealth struct {
	Name    string        `json:"name"`
	Kind    ProviderKind  `json:"kind"`
	Healthy bool          `json:"healthy"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}
