package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/toolhub/internal/providers"
	"github.com/crystaldolphin/toolhub/internal/schema"
)

func TestClient(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.store.AddProvider(ctx, "k8s", providers.Config{BaseURL: env.bridge.URL})
	require.NoError(t, err)

	params, err := schema.ParametersFromValue(map[string]any{
		"type":       "object",
		"properties": map[string]any{"n": map[string]any{"type": "number"}},
	})
	require.NoError(t, err)
	_, err = env.store.AddDynamicTool("double", "doubles n", params, "return n * 2")
	require.NoError(t, err)

	c := NewClient(strings.TrimPrefix(env.server.URL, "http://"), 5*time.Second)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "toolhub ready", health.Status)
	assert.Equal(t, 1, health.Providers)

	listed, err := c.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "k8s", listed[0].Name)
	assert.Equal(t, schema.KindHTTP, listed[0].Kind)

	provHealth, err := c.ProviderHealth(ctx)
	require.NoError(t, err)
	require.Len(t, provHealth, 1)
	assert.True(t, provHealth[0].Healthy)

	tools, err := c.ListTools(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(tools))
	for _, tl := range tools {
		names = append(names, tl.Name)
	}
	assert.Contains(t, names, "double")
	assert.Contains(t, names, "k8s__kubectl_get")

	res, err := c.Invoke(ctx, "double", map[string]any{"n": 4})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "8", res.Text)

	_, err = c.Invoke(ctx, "missing", nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "unknown_tool", apiErr.Code)
}

func TestClientUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	_, err := c.Health(context.Background())
	assert.ErrorIs(t, err, schema.ErrProviderUnavailable)
}
