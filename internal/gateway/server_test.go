package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/toolhub/internal/bridge"
	"github.com/crystaldolphin/toolhub/internal/dynamic"
	"github.com/crystaldolphin/toolhub/internal/hub"
	"github.com/crystaldolphin/toolhub/internal/providers"
	"github.com/crystaldolphin/toolhub/internal/schema"
	"github.com/crystaldolphin/toolhub/internal/telemetry"
)

type echoRunner struct {
	calls atomic.Int32
}

func (r *echoRunner) Run(_ context.Context, tool string, args []string) (bridge.RunResult, error) {
	r.calls.Add(1)
	out, _ := json.Marshal(map[string]any{"tool": tool, "args": args})
	return bridge.RunResult{Stdout: string(out)}, nil
}

type testEnv struct {
	server *httptest.Server
	bridge *httptest.Server
	store  *hub.ProviderStore
	runner *echoRunner
}

func newTestEnv(t *testing.T, metrics MetricsSource) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	runner := &echoRunner{}
	bridgeSrv := httptest.NewServer(bridge.NewServer(runner, logger))
	t.Cleanup(bridgeSrv.Close)

	var observer telemetry.Observer
	if p, ok := metrics.(*telemetry.Provider); ok {
		observer = p.Observer()
	}
	store := hub.NewProviderStore(hub.Options{
		Factory:  providers.NewFactory(providers.Params{Logger: logger, HealthTimeout: time.Second}),
		Compiler: dynamic.NewCompiler(dynamic.Options{Logger: logger}),
		Observer: observer,
		Logger:   logger,
	})
	t.Cleanup(func() { store.ShutdownAll(context.Background()) })

	gw := NewServer(store, Options{
		Metrics:        metrics,
		DockerLocalURL: bridgeSrv.URL,
		Logger:         logger,
	})
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, bridge: bridgeSrv, store: store, runner: runner}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestProviderRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/providers", map[string]any{
		"name":   "docker",
		"config": map[string]any{"baseUrl": env.bridge.URL},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.EqualValues(t, 6, body["toolCount"])
	assert.Equal(t, string(schema.KindHTTP), body["kind"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	t.Run("duplicate", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/providers", map[string]any{
			"name":   "docker",
			"config": map[string]any{"baseUrl": env.bridge.URL},
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "duplicate_provider", errorCode(body))
	})

	t.Run("unreachable bridge", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()
		resp, body := env.do(t, http.MethodPost, "/api/providers", map[string]any{
			"name":   "gone",
			"config": map[string]any{"baseUrl": dead.URL},
		})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "provider_unavailable", errorCode(body))
	})

	t.Run("invalid requests", func(t *testing.T) {
		for _, req := range []map[string]any{
			{},
			{"name": "x", "config": map[string]any{}},
			{"name": "x", "config": map[string]any{"type": "grpc", "command": "node"}},
		} {
			resp, body := env.do(t, http.MethodPost, "/api/providers", req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%v -> %v", req, body)
		}
	})

	t.Run("inline config", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/providers", map[string]any{
			"name": "inline", "type": "http", "baseUrl": env.bridge.URL,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, body)
		env.do(t, http.MethodDelete, "/api/providers/inline", nil)
	})

	resp, _ = env.do(t, http.MethodGet, "/api/providers", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	listed := env.store.ListProviders()
	require.Len(t, listed, 1)
	assert.Equal(t, "docker", listed[0].Name)

	resp, _ = env.do(t, http.MethodDelete, "/api/providers/docker", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, env.store.ListTools())

	// Removing again is a no-op.
	resp, _ = env.do(t, http.MethodDelete, "/api/providers/docker", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDockerGatewayRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/providers/docker-gateway", map[string]any{"type": "local"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "docker-mcp-local", body["name"])

	resp, body = env.do(t, http.MethodPost, "/api/providers/docker-gateway", map[string]any{"type": "extension"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)

	resp, _ = env.do(t, http.MethodPost, "/api/providers/docker-gateway", map[string]any{"type": "cloud"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvokeRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodPost, "/api/providers", map[string]any{
		"name": "k8s", "config": map[string]any{"baseUrl": env.bridge.URL},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/tools/k8s__kubectl_get/invoke", map[string]any{
		"resourceType": "pods", "namespace": "default",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, false, body["isError"])
	result, _ := body["result"].(map[string]any)
	assert.Equal(t, "kubectl_get", result["tool"])
	assert.Contains(t, body["text"], "namespace=default")
	assert.EqualValues(t, 1, env.runner.calls.Load())

	resp, body = env.do(t, http.MethodPost, "/api/tools/missing/invoke", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unknown_tool", errorCode(body))
}

func TestDynamicToolRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/tools", map[string]any{
		"name":        "double",
		"description": "doubles n",
		"code":        "return n * 2",
		"parameters":  map[string]any{"type": "object", "properties": map[string]any{"n": map[string]any{"type": "number"}}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, string(schema.KindDynamic), body["kind"])

	resp, body = env.do(t, http.MethodPost, "/api/tools/double/invoke", map[string]any{"n": 21})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 42, body["result"])
	assert.Equal(t, "42", body["text"])

	resp, body = env.do(t, http.MethodPost, "/api/tools", map[string]any{"name": "broken", "code": "return ("})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", errorCode(body))

	resp, _ = env.do(t, http.MethodPost, "/api/tools", map[string]any{"name": "nocode"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/tools/double", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/tools/double/invoke", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListToolsFunctionFormat(t *testing.T) {
	env := newTestEnv(t, nil)
	params, err := schema.ParametersFromValue(map[string]any{
		"type":       "object",
		"properties": map[string]any{"n": map[string]any{"type": "number"}},
		"required":   []any{"n"},
	})
	require.NoError(t, err)
	_, err = env.store.AddDynamicTool("double", "doubles n", params, "return n * 2")
	require.NoError(t, err)

	resp, err := http.Get(env.server.URL + "/api/tools?format=functions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var defs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&defs))
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0]["type"])
	fn, _ := defs[0]["function"].(map[string]any)
	assert.Equal(t, "double", fn["name"])
	assert.Equal(t, "doubles n", fn["description"])
	p, _ := fn["parameters"].(map[string]any)
	assert.Equal(t, []any{"n"}, p["required"])

	bad, _ := env.do(t, http.MethodGet, "/api/tools?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestListToolsFunctionSubset(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, name := range []string{"one", "two", "three"} {
		_, err := env.store.AddDynamicTool(name, name, nil, "return 1")
		require.NoError(t, err)
	}

	names := func(query string) []string {
		t.Helper()
		resp, err := http.Get(env.server.URL + "/api/tools?format=functions&" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var defs []map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&defs))
		out := []string{}
		for _, d := range defs {
			fn, _ := d["function"].(map[string]any)
			out = append(out, fn["name"].(string))
		}
		return out
	}

	assert.Equal(t, []string{"three", "one"}, names("only=three,one"))
	assert.Equal(t, []string{"one", "three"}, names("exclude=two"))
	assert.Equal(t, []string{"three"}, names("only=one,three&exclude=one"))

	resp, body := env.do(t, http.MethodGet, "/api/tools?format=functions&only=missing", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", errorCode(body))
}

func TestToolCreatorRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/tool-creator", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["enabled"])

	_, body = env.do(t, http.MethodGet, "/api/tool-creator", nil)
	assert.Equal(t, true, body["enabled"])

	resp, body = env.do(t, http.MethodPost, "/api/tools/tool-creator/invoke", map[string]any{
		"name": "hello", "description": "greets", "code": "return 'hi'",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Tool created", body["result"])

	_, body = env.do(t, http.MethodDelete, "/api/tool-creator", nil)
	assert.Equal(t, false, body["enabled"])

	names := make([]string, 0)
	for _, tl := range env.store.ListTools() {
		names = append(names, tl.Name)
	}
	assert.Equal(t, []string{"hello"}, names)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "toolhub ready", body["status"])

	resp, body = env.do(t, http.MethodGet, "/api/metrics", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "telemetry_disabled", errorCode(body))

	tp, err := telemetry.Setup(context.Background(), telemetry.Config{Enabled: true, ServiceName: "toolhub-test"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	env = newTestEnv(t, tp)
	env.do(t, http.MethodPost, "/api/tools", map[string]any{"name": "one", "code": "return 1"})
	env.do(t, http.MethodPost, "/api/tools/one/invoke", nil)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/metrics", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var metrics []metricView
	require.NoError(t, json.NewDecoder(res.Body).Decode(&metrics))
	var found bool
	for _, m := range metrics {
		if m.Name == "toolhub.tool.invocations" {
			found = true
			require.NotEmpty(t, m.Points)
			assert.EqualValues(t, 1, m.Points[0].Value)
		}
	}
	assert.True(t, found, "invocation counter missing from %v", metrics)
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/tools", map[string]any{"name": "before", "code": "return 1"})

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var snap snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "snapshot", snap.Type)
	require.Len(t, snap.Tools, 1)
	assert.Equal(t, "before", snap.Tools[0].Name)

	env.do(t, http.MethodPost, "/api/tools", map[string]any{"name": "after", "code": "return 2"})

	var ev struct {
		Type string              `json:"type"`
		Tool *schema.ToolSummary `json:"tool"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "toolAdded", ev.Type)
	require.NotNil(t, ev.Tool)
	assert.Equal(t, "after", ev.Tool.Name)
}
