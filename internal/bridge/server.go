package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Runner executes one toolkit tool call.
type Runner interface {
	Run(ctx context.Context, tool string, args []string) (RunResult, error)
}

// RunResult is the captured outcome of a finished command. A non-nil error
// from Runner.Run means the command could not be started at all.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// DockerRunner shells out to `docker mcp tools call`.
type DockerRunner struct {
	Binary string
}

func (r DockerRunner) Run(ctx context.Context, tool string, args []string) (RunResult, error) {
	bin := r.Binary
	if bin == "" {
		bin = "docker"
	}
	argv := append([]string{"mcp", "tools", "call", tool}, args...)
	cmd := exec.CommandContext(ctx, bin, argv...) // #nosec G204 -- tool name comes from the route, arguments are key=value pairs

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, err
	}
	return res, nil
}

// FormatArgs renders call parameters as key=value words in key order. Empty
// values are dropped; strings with spaces, newlines or quotes are quoted.
func FormatArgs(params map[string]any) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := params[k].(type) {
		case nil:
		case string:
			if v == "" {
				continue
			}
			if strings.ContainsAny(v, " \n\"") {
				args = append(args, k+`="`+v+`"`)
			} else {
				args = append(args, k+"="+v)
			}
		case bool:
			args = append(args, k+"="+strconv.FormatBool(v))
		case float64:
			args = append(args, k+"="+strconv.FormatFloat(v, 'f', -1, 64))
		default:
			data, err := json.Marshal(v)
			if err != nil {
				args = append(args, fmt.Sprintf("%s=%v", k, v))
				continue
			}
			args = append(args, k+"="+string(data))
		}
	}
	return args
}

// Server is the HTTP side of the bridge: GET /health and POST /tools/{name}.
type Server struct {
	runner Runner
	logger *slog.Logger
	mux    *http.ServeMux
}

func NewServer(runner Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		runner: runner,
		logger: logger.With("component", "bridge-server"),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /tools/{name}", s.handleCall)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("MCP HTTP bridge listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "MCP HTTP Bridge Ready"})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	tool := r.PathValue("name")

	params := map[string]any{}
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, callResponse{Error: "read body: " + err.Error()})
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			writeJSON(w, http.StatusBadRequest, callResponse{Error: "invalid JSON body: " + err.Error()})
			return
		}
	}

	if tool == "create_or_update_file" {
		if missing := missingParams(params, "owner", "repo", "path", "content", "message"); len(missing) > 0 {
			writeJSON(w, http.StatusBadRequest, callResponse{Error: "Missing required parameters: " + strings.Join(missing, ", ")})
			return
		}
		if b, _ := params["branch"].(string); b == "" {
			params["branch"] = "main"
		}
	}

	args := FormatArgs(params)
	s.logger.Info("calling toolkit tool", "tool", tool, "args", len(args))

	res, err := s.runner.Run(r.Context(), tool, args)
	if err != nil {
		s.logger.Error("toolkit call failed to start", "tool", tool, "err", err)
		writeJSON(w, http.StatusInternalServerError, callResponse{Error: err.Error()})
		return
	}
	if res.ExitCode != 0 {
		s.logger.Warn("toolkit call failed", "tool", tool, "exit_code", res.ExitCode)
		writeJSON(w, http.StatusInternalServerError, callResponse{
			Error:  fmt.Sprintf("Exit code %d", res.ExitCode),
			Stdout: res.Stdout,
			Stderr: res.Stderr,
		})
		return
	}

	out := callResponse{Success: true, Stdout: res.Stdout, Stderr: res.Stderr}
	trimmed := bytes.TrimSpace([]byte(res.Stdout))
	if json.Valid(trimmed) && len(trimmed) > 0 {
		out.Data = trimmed
	} else {
		out.Data, _ = json.Marshal(res.Stdout)
	}
	writeJSON(w, http.StatusOK, out)
}

func missingParams(params map[string]any, names ...string) []string {
	var missing []string
	for _, n := range names {
		if v, ok := params[n]; !ok || v == nil || v == "" {
			missing = append(missing, n)
		}
	}
	return missing
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
