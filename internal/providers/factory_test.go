package providers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/toolhub/internal/bridge"
	"github.com/crystaldolphin/toolhub/internal/mcp"
	"github.com/crystaldolphin/toolhub/internal/schema"
)

func TestConfigResolve(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    Transport
		wantErr bool
	}{
		{"explicit stdio", Config{Type: "stdio", Command: "srv"}, TransportStdio, false},
		{"explicit http", Config{Type: "HTTP", BaseURL: "http://x"}, TransportHTTP, false},
		{"alias", Config{Type: "http-mcp", BaseURL: "http://x"}, TransportHTTP, false},
		{"inferred stdio", Config{Command: "srv"}, TransportStdio, false},
		{"inferred http", Config{BaseURL: "http://x"}, TransportHTTP, false},
		{"command wins over url", Config{Command: "srv", BaseURL: "http://x"}, TransportStdio, false},
		{"unknown type", Config{Type: "grpc"}, "", true},
		{"nothing set", Config{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := tt.cfg.Resolve()
			if tt.wantErr {
				require.ErrorIs(t, err, schema.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec.Type)
		})
	}
}

func TestFactoryNew(t *testing.T) {
	f := NewFactory(Params{HandshakeTimeout: time.Second})

	a, err := f.New("files", Config{Command: "mcp-files", Args: []string{"--root", "/tmp"}})
	require.NoError(t, err)
	stdio, ok := a.(*mcp.Adapter)
	require.True(t, ok)
	assert.Equal(t, "mcp-files --root /tmp", stdio.Endpoint())
	assert.Equal(t, schema.KindStdio, a.Kind())

	a, err = f.New("dk", Config{Type: "http", BaseURL: "http://localhost:3001/"})
	require.NoError(t, err)
	_, ok = a.(*bridge.Adapter)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:3001", a.Endpoint())

	_, err = f.New("bad", Config{Type: "stdio"})
	require.ErrorIs(t, err, schema.ErrInvalidConfig)
	_, err = f.New("bad", Config{Type: "http"})
	require.ErrorIs(t, err, schema.ErrInvalidConfig)
}

func TestConfigJSONTimeout(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(`{"command":"srv","timeout":"45s"}`), &cfg))
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, "srv", cfg.Command)

	require.NoError(t, json.Unmarshal([]byte(`{"baseUrl":"http://x","timeout":1500}`), &cfg))
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, "http://x", cfg.BaseURL)

	err := json.Unmarshal([]byte(`{"timeout":"soon"}`), &cfg)
	require.ErrorIs(t, err, schema.ErrInvalidConfig)

	data, err := json.Marshal(Config{Command: "srv", Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"srv","timeout":"2s"}`, string(data))
}

func TestFindTransport(t *testing.T) {
	spec, ok := FindTransport(" Bridge ")
	require.True(t, ok)
	assert.Equal(t, TransportHTTP, spec.Type)
	assert.Equal(t, "HTTP bridge", spec.Label())

	_, ok = FindTransport("websocket")
	assert.False(t, ok)
}
