package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "TOOLHUB_CONFIG"

// ConfigPath returns the config file path: $TOOLHUB_CONFIG, or
// ~/.toolhub/config.yaml.
func ConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(DataDir(), "config.yaml")
}

// DataDir returns the toolhub data directory: ~/.toolhub.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".toolhub"
	}
	return filepath.Join(home, ".toolhub")
}

// Load reads and parses the config file at path over DefaultConfig().
// If path is empty, ConfigPath() is used. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := Parse(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Parse expands environment variables in data, decodes it into cfg and
// validates the result. Fields absent from data keep their value in cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := expandEnvVars(string(data))
	if strings.TrimSpace(expanded) != "" {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return fmt.Errorf("%w: %v", schema.ErrInvalidConfig, err)
		}
	}
	if err := parseDurations(cfg); err != nil {
		return err
	}
	return cfg.Validate()
}

var envVarRE = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or the
// empty string when unset.
func expandEnvVars(s string) string {
	return envVarRE.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarRE.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"timeouts.handshake", cfg.Timeouts.HandshakeRaw, &cfg.Timeouts.Handshake},
		{"timeouts.health_check", cfg.Timeouts.HealthCheckRaw, &cfg.Timeouts.HealthCheck},
		{"timeouts.invoke", cfg.Timeouts.InvokeRaw, &cfg.Timeouts.Invoke},
		{"timeouts.dynamic_exec", cfg.Timeouts.DynamicExecRaw, &cfg.Timeouts.DynamicExec},
		{"timeouts.shutdown", cfg.Timeouts.ShutdownRaw, &cfg.Timeouts.Shutdown},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%w: parsing %s %q: %v", schema.ErrInvalidConfig, f.key, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", schema.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port %d out of range", c.Server.Port)
	}
	if c.Bridge.Port < 0 || c.Bridge.Port > 65535 {
		return invalid("bridge.port %d out of range", c.Bridge.Port)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalid("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json", "color":
	default:
		return invalid("logging.format %q must be text, json or color", c.Logging.Format)
	}

	timeouts := []struct {
		key string
		d   time.Duration
	}{
		{"timeouts.handshake", c.Timeouts.Handshake},
		{"timeouts.health_check", c.Timeouts.HealthCheck},
		{"timeouts.invoke", c.Timeouts.Invoke},
		{"timeouts.dynamic_exec", c.Timeouts.DynamicExec},
		{"timeouts.shutdown", c.Timeouts.Shutdown},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			return invalid("%s must be positive", t.key)
		}
	}
	if c.Dynamic.MaxConcurrent <= 0 {
		return invalid("dynamic.max_concurrent must be positive")
	}
	if c.Dynamic.MaxHeapMB <= 0 {
		return invalid("dynamic.max_heap_mb must be positive")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return invalid("providers[%d].name is required", i)
		}
		if seen[p.Name] {
			return invalid("provider %q is defined twice", p.Name)
		}
		seen[p.Name] = true
		if _, err := p.Provider(); err != nil {
			return err
		}
	}

	seen = make(map[string]bool, len(c.DynamicTools))
	for i, d := range c.DynamicTools {
		if strings.TrimSpace(d.Name) == "" {
			return invalid("dynamic_tools[%d].name is required", i)
		}
		if seen[d.Name] {
			return invalid("dynamic tool %q is defined twice", d.Name)
		}
		seen[d.Name] = true
		if strings.TrimSpace(d.Code) == "" {
			return invalid("dynamic tool %q has no code", d.Name)
		}
		if _, err := d.ParsedParameters(); err != nil {
			return err
		}
	}

	if c.Heartbeat.Enabled && strings.TrimSpace(c.Heartbeat.Schedule) == "" {
		return invalid("heartbeat.schedule is required when the heartbeat is enabled")
	}
	return nil
}

// Save writes cfg to path as YAML with mode 0600.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
