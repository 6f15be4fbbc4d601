package mcp

import "time"

// DefaultHandshakeTimeout bounds initialize plus tools/list during Bootstrap.
const DefaultHandshakeTimeout = 30 * time.Second

// ServerConfig holds the launch parameters for a single stdio MCP server.
type ServerConfig struct {
	Command string
	Args    []string

	// Env is merged over the parent environment.
	Env              map[string]string
	Dir              string
	HandshakeTimeout time.Duration
}

func (c ServerConfig) handshakeTimeout() time.Duration {
	if c.HandshakeTimeout > 0 {
		return c.HandshakeTimeout
	}
	return DefaultHandshakeTimeout
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
