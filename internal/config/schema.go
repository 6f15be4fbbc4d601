// Package config defines the toolhub configuration file.
//
// The file is YAML. ${VAR} references are expanded from the environment
// before parsing and durations are written as Go duration strings ("30s").
package config

import (
	"time"

	"github.com/crystaldolphin/toolhub/internal/config/gateway"
	"github.com/crystaldolphin/toolhub/internal/config/tool"
	"github.com/crystaldolphin/toolhub/internal/logging"
)

// Config is the root of the configuration file.
type Config struct {
	Server       gateway.GatewayConfig    `yaml:"server"`
	Bridge       gateway.BridgeConfig     `yaml:"bridge"`
	Logging      logging.Config           `yaml:"logging"`
	Telemetry    TelemetryConfig          `yaml:"telemetry"`
	Providers    []tool.ProviderConfig    `yaml:"providers"`
	DynamicTools []tool.DynamicToolConfig `yaml:"dynamic_tools"`
	ToolCreator  bool                     `yaml:"tool_creator"`
	Timeouts     TimeoutsConfig           `yaml:"timeouts"`
	Heartbeat    HeartbeatConfig          `yaml:"heartbeat"`
	Dynamic      DynamicConfig            `yaml:"dynamic"`
}

// TelemetryConfig enables OpenTelemetry metrics and traces.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// TimeoutsConfig bounds every blocking provider operation.
type TimeoutsConfig struct {
	Handshake   time.Duration `yaml:"-"`
	HealthCheck time.Duration `yaml:"-"`
	Invoke      time.Duration `yaml:"-"`
	DynamicExec time.Duration `yaml:"-"`
	Shutdown    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HandshakeRaw   string `yaml:"handshake"`
	HealthCheckRaw string `yaml:"health_check"`
	InvokeRaw      string `yaml:"invoke"`
	DynamicExecRaw string `yaml:"dynamic_exec"`
	ShutdownRaw    string `yaml:"shutdown"`
}

// DynamicConfig bounds the sandboxes that run dynamic tools. The execution
// time limit lives in timeouts.dynamic_exec.
type DynamicConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
	MaxHeapMB     int `yaml:"max_heap_mb"`
}

// HeartbeatConfig schedules provider liveness probes.
type HeartbeatConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

func defaultTimeouts() TimeoutsConfig {
	return TimeoutsConfig{
		Handshake:      30 * time.Second,
		HealthCheck:    5 * time.Second,
		Invoke:         60 * time.Second,
		DynamicExec:    2 * time.Second,
		Shutdown:       10 * time.Second,
		HandshakeRaw:   "30s",
		HealthCheckRaw: "5s",
		InvokeRaw:      "60s",
		DynamicExecRaw: "2s",
		ShutdownRaw:    "10s",
	}
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Server:       gateway.DefaultGatewayConfig(),
		Bridge:       gateway.DefaultBridgeConfig(),
		Logging:      logging.Config{Level: "info", Format: "text"},
		Telemetry:    TelemetryConfig{ServiceName: "toolhub"},
		Providers:    []tool.ProviderConfig{},
		DynamicTools: []tool.DynamicToolConfig{},
		Timeouts:     defaultTimeouts(),
		Heartbeat:    HeartbeatConfig{Enabled: true, Schedule: "@every 30s"},
		Dynamic:      DynamicConfig{MaxConcurrent: 8, MaxHeapMB: 64},
	}
}
