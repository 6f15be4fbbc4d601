package dependency

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/toolhub/internal/config"
	"github.com/crystaldolphin/toolhub/internal/schema"
)

const testConfig = `
tool_creator: true
heartbeat:
  schedule: "@every 1m"
dynamic_tools:
  - name: add
    description: add two numbers
    parameters:
      type: object
      properties:
        a: {type: number}
        b: {type: number}
    code: "return a + b;"
  - name: broken
    code: "return ("
providers:
  - name: nowhere
    base_url: http://127.0.0.1:1
`

func TestContainerBoot(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, config.Parse([]byte(testConfig), &cfg))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	c, err := New(ctx, &cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, c.Gateway())
	require.NotNil(t, c.Heartbeat())
	assert.False(t, c.Telemetry().Enabled())

	err = c.Boot(ctx)
	require.Error(t, err, "broken tool and unreachable provider are reported")
	assert.ErrorIs(t, err, schema.ErrInvalidTool)
	assert.ErrorIs(t, err, schema.ErrProviderUnavailable)

	assert.Empty(t, c.Store().ListProviders())
	assert.True(t, c.Store().ToolCreatorEnabled())

	got, err := c.Store().Invoke(ctx, "add", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.EqualValues(t, 5, got)

	require.NoError(t, c.Shutdown(ctx))
}

func TestContainerRejectsBadSchedule(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Heartbeat.Schedule = "not a schedule"
	_, err := New(context.Background(), &cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, schema.ErrInvalidConfig)
}
