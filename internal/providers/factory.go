package providers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/crystaldolphin/toolhub/internal/bridge"
	"github.com/crystaldolphin/toolhub/internal/mcp"
	"github.com/crystaldolphin/toolhub/internal/schema"
)

// Config describes one provider as submitted by config files or the API.
// An empty Type is inferred: stdio when Command is set, http when BaseURL is.
type Config struct {
	Type    string                `json:"type,omitempty"`
	Command string                `json:"command,omitempty"`
	Args    []string              `json:"args,omitempty"`
	Env     map[string]string     `json:"env,omitempty"`
	Dir     string                `json:"dir,omitempty"`
	BaseURL string                `json:"baseUrl,omitempty"`
	Catalog []bridge.CatalogEntry `json:"catalog,omitempty"`

	// Timeout bounds bootstrap: the stdio handshake or the bridge health check.
	Timeout time.Duration `json:"-"`
}

// Resolve returns the transport for cfg, applying type inference.
func (c Config) Resolve() (TransportSpec, error) {
	if strings.TrimSpace(c.Type) != "" {
		spec, ok := FindTransport(c.Type)
		if !ok {
			return TransportSpec{}, fmt.Errorf("%w: unknown provider type %q", schema.ErrInvalidConfig, c.Type)
		}
		return spec, nil
	}
	for _, spec := range Transports {
		if spec.Detect(c) {
			return spec, nil
		}
	}
	return TransportSpec{}, fmt.Errorf("%w: provider needs a command or a baseUrl", schema.ErrInvalidConfig)
}

// UnmarshalJSON accepts timeout as a duration string ("30s") or as
// milliseconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		Timeout json.RawMessage `json:"timeout,omitempty"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Timeout) == 0 || string(aux.Timeout) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(aux.Timeout, &s); err == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: timeout %q: %v", schema.ErrInvalidConfig, s, err)
		}
		c.Timeout = d
		return nil
	}
	var ms float64
	if err := json.Unmarshal(aux.Timeout, &ms); err != nil {
		return fmt.Errorf("%w: timeout must be a duration string or milliseconds", schema.ErrInvalidConfig)
	}
	c.Timeout = time.Duration(ms * float64(time.Millisecond))
	return nil
}

func (c Config) MarshalJSON() ([]byte, error) {
	type plain Config
	aux := struct {
		plain
		Timeout string `json:"timeout,omitempty"`
	}{plain: plain(c)}
	if c.Timeout > 0 {
		aux.Timeout = c.Timeout.String()
	}
	return json.Marshal(aux)
}

// Params are the process-wide defaults every adapter is built with.
type Params struct {
	Logger           *slog.Logger
	HandshakeTimeout time.Duration
	HealthTimeout    time.Duration
	CallTimeout      time.Duration
	HTTPClient       *http.Client
}

// Factory builds unbootstrapped adapters.
type Factory struct {
	p Params
}

func NewFactory(p Params) *Factory {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Factory{p: p}
}

// New creates the adapter for cfg. It does not start anything.
func (f *Factory) New(name string, cfg Config) (Adapter, error) {
	spec, err := cfg.Resolve()
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", name, err)
	}
	return spec.build(f, name, cfg)
}

func (f *Factory) newStdio(name string, cfg Config) (Adapter, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("%w: stdio provider %q needs a command", schema.ErrInvalidConfig, name)
	}
	timeout := f.p.HandshakeTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	return mcp.NewAdapter(name, mcp.ServerConfig{
		Command:          cfg.Command,
		Args:             cfg.Args,
		Env:              cfg.Env,
		Dir:              cfg.Dir,
		HandshakeTimeout: timeout,
	}, f.p.Logger), nil
}

func (f *Factory) newHTTP(name string, cfg Config) (Adapter, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: http provider %q needs a baseUrl", schema.ErrInvalidConfig, name)
	}
	timeout := f.p.HealthTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	return bridge.NewAdapter(name, bridge.Config{
		BaseURL:       cfg.BaseURL,
		HealthTimeout: timeout,
		CallTimeout:   f.p.CallTimeout,
		Catalog:       cfg.Catalog,
		HTTPClient:    f.p.HTTPClient,
	}, f.p.Logger), nil
}
