package gateway

import (
	"net"
	"strconv"
)

// GatewayConfig holds gateway server settings.
type GatewayConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Bridge URLs used by POST /api/providers/docker-gateway.
	DockerExtensionURL string `yaml:"docker_extension_url"`
	DockerLocalURL     string `yaml:"docker_local_url"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Host:               "127.0.0.1",
		Port:               3003,
		DockerExtensionURL: "http://host.docker.internal:3001",
		DockerLocalURL:     "http://localhost:3001",
	}
}

func (c GatewayConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BridgeConfig holds settings of the MCP HTTP bridge command.
type BridgeConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Docker string `yaml:"docker"`
}

func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{Host: "0.0.0.0", Port: 3001, Docker: "docker"}
}

func (c BridgeConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
