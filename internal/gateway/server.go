// Package gateway exposes the provider store over HTTP: REST routes for
// providers and tools, and a websocket that streams registry events.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/crystaldolphin/toolhub/internal/bus"
	"github.com/crystaldolphin/toolhub/internal/hub"
	"github.com/crystaldolphin/toolhub/internal/providers"
	"github.com/crystaldolphin/toolhub/internal/schema"
	"github.com/crystaldolphin/toolhub/internal/tools"
)

// Hub is the provider store contract the gateway serves.
type Hub interface {
	AddProvider(ctx context.Context, name string, cfg providers.Config) (hub.AddResult, error)
	RemoveProvider(ctx context.Context, name string)
	ListProviders() []schema.ProviderSummary
	CheckHealth(ctx context.Context) []schema.ProviderHealth
	ListTools() []schema.ToolSummary
	Registry() *tools.Registry
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
	AddDynamicTool(name, description string, params *schema.Parameters, code string) (schema.Tool, error)
	RemoveDynamicTool(name string)
	EnableToolCreator()
	DisableToolCreator()
	ToolCreatorEnabled() bool
	Subscribe(ctx context.Context) (<-chan bus.Event, string)
}

// MetricsSource exposes collected telemetry.
type MetricsSource interface {
	Enabled() bool
	Collect(ctx context.Context) (metricdata.ResourceMetrics, error)
}

// Options configure a Server.
type Options struct {
	Addr    string
	Metrics MetricsSource

	// Bridge URLs for POST /api/providers/docker-gateway, by type.
	DockerExtensionURL string
	DockerLocalURL     string

	MaxBody int64
	Logger  *slog.Logger
}

// Server is the toolhub HTTP API.
type Server struct {
	hub     Hub
	metrics MetricsSource
	addr    string
	dockers map[string]string
	maxBody int64
	logger  *slog.Logger
	started time.Time
}

func NewServer(h Hub, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := opts.MaxBody
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &Server{
		hub:     h,
		metrics: opts.Metrics,
		addr:    opts.Addr,
		dockers: map[string]string{
			"extension": opts.DockerExtensionURL,
			"local":     opts.DockerLocalURL,
		},
		maxBody: maxBody,
		logger:  logger.With("component", "gateway"),
		started: time.Now(),
	}
}

// Handler returns the routes wrapped in request-id and body-limit
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.requestID(s.maxBodyMiddleware(mux))
}

// RegisterRoutes mounts the API onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/providers", s.handleListProviders)
	mux.HandleFunc("POST /api/providers", s.handleAddProvider)
	mux.HandleFunc("GET /api/providers/health", s.handleProviderHealth)
	mux.HandleFunc("POST /api/providers/docker-gateway", s.handleDockerGateway)
	mux.HandleFunc("DELETE /api/providers/{name}", s.handleRemoveProvider)

	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("POST /api/tools", s.handleAddTool)
	mux.HandleFunc("DELETE /api/tools/{name}", s.handleRemoveTool)
	mux.HandleFunc("POST /api/tools/{name}/invoke", s.handleInvoke)

	mux.HandleFunc("GET /api/tool-creator", s.handleToolCreatorStatus)
	mux.HandleFunc("POST /api/tool-creator", s.handleEnableToolCreator)
	mux.HandleFunc("DELETE /api/tool-creator", s.handleDisableToolCreator)

	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /ws", s.handleEvents)
}

// Run serves on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "request_id", id, "elapsed", time.Since(start))
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}

// writeHubError maps the error taxonomy onto HTTP statuses.
func writeHubError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schema.ErrDuplicateProvider):
		writeError(w, http.StatusConflict, "duplicate_provider", err.Error())
	case errors.Is(err, schema.ErrInvalidConfig), errors.Is(err, schema.ErrInvalidTool):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, schema.ErrUnknownTool):
		writeError(w, http.StatusNotFound, "unknown_tool", err.Error())
	case errors.Is(err, schema.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "provider_unavailable", err.Error())
	case errors.Is(err, schema.ErrProviderCrashed):
		writeError(w, http.StatusBadGateway, "provider_crashed", err.Error())
	case errors.Is(err, schema.ErrCallTimeout), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
