package heartbeat

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

type scriptedChecker struct {
	mu     sync.Mutex
	rounds [][]schema.ProviderHealth
	calls  int
}

func (c *scriptedChecker) CheckHealth(context.Context) []schema.ProviderHealth {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.rounds) {
		i = len(c.rounds) - 1
	}
	c.calls++
	return c.rounds[i]
}

func (c *scriptedChecker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestCheckLogsTransitions(t *testing.T) {
	checker := &scriptedChecker{rounds: [][]schema.ProviderHealth{
		{{Name: "fs", Healthy: true}, {Name: "web", Healthy: true}},
		{{Name: "fs", Healthy: false, Error: "provider crashed"}, {Name: "web", Healthy: true}},
		{{Name: "fs", Healthy: true}},
	}}
	var out syncBuffer
	svc, err := NewService(checker, "", slog.New(slog.NewTextHandler(&out, nil)))
	require.NoError(t, err)

	ctx := context.Background()
	svc.Check(ctx)
	assert.NotContains(t, out.String(), "unhealthy")

	svc.Check(ctx)
	assert.Contains(t, out.String(), "provider became unhealthy")
	assert.False(t, svc.Last()["fs"].Healthy)

	svc.Check(ctx)
	assert.Contains(t, out.String(), "provider recovered")
	last := svc.Last()
	assert.True(t, last["fs"].Healthy)
	assert.NotContains(t, last, "web", "removed providers are forgotten")
}

func TestNewServiceRejectsBadSchedule(t *testing.T) {
	_, err := NewService(&scriptedChecker{}, "not a schedule", nil)
	assert.ErrorIs(t, err, schema.ErrInvalidConfig)

	for _, spec := range []string{"@every 10s", "*/5 * * * *", "@hourly"} {
		_, err := NewService(&scriptedChecker{}, spec, nil)
		assert.NoError(t, err, spec)
	}
}

func TestStartRunsOnSchedule(t *testing.T) {
	checker := &scriptedChecker{rounds: [][]schema.ProviderHealth{{{Name: "fs", Healthy: true}}}}
	svc, err := NewService(checker, "@every 1s", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	require.Eventually(t, func() bool { return checker.count() > 0 }, 3*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
