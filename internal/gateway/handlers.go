package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crystaldolphin/toolhub/internal/providers"
	"github.com/crystaldolphin/toolhub/internal/schema"
	"github.com/crystaldolphin/toolhub/internal/tools"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "toolhub ready",
		"providers": len(s.hub.ListProviders()),
		"tools":     len(s.hub.ListTools()),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// ---------------------------------------------------------------------------
// Providers
// ---------------------------------------------------------------------------

func (s *Server) handleListProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.ListProviders())
}

// addProviderRequest accepts {name, config} or, for older clients, the
// provider fields inline next to name.
type addProviderRequest struct {
	Name   string            `json:"name"`
	Config *providers.Config `json:"config"`
}

func (s *Server) handleAddProvider(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "read body: "+err.Error())
		return
	}
	var req addProviderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}
	if req.Config == nil {
		var inline providers.Config
		if err := json.Unmarshal(body, &inline); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid provider config: "+err.Error())
			return
		}
		req.Config = &inline
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name and config are required")
		return
	}

	s.addProvider(w, r, req.Name, *req.Config)
}

func (s *Server) addProvider(w http.ResponseWriter, r *http.Request, name string, cfg providers.Config) {
	res, err := s.hub.AddProvider(r.Context(), name, cfg)
	if err != nil {
		s.logger.Warn("add provider failed", "provider", name, "err", err)
		writeHubError(w, err)
		return
	}

	out := map[string]any{"success": true, "name": res.Name, "kind": res.Kind, "toolCount": res.ToolCount}
	for _, p := range s.hub.ListProviders() {
		if p.Name == res.Name {
			out["provider"] = p
		}
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleDockerGateway(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Type string `json:"type"`
	}{Type: "extension"}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Type == "" {
		req.Type = "extension"
	}

	baseURL, ok := s.dockers[req.Type]
	if !ok || baseURL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("unknown docker gateway type %q (want extension or local)", req.Type))
		return
	}

	s.addProvider(w, r, "docker-mcp-"+req.Type, providers.Config{
		Type:    string(providers.TransportHTTP),
		BaseURL: baseURL,
	})
}

func (s *Server) handleRemoveProvider(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.hub.RemoveProvider(r.Context(), name)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "name": name})
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.CheckHealth(r.Context()))
}

// ---------------------------------------------------------------------------
// Tools
// ---------------------------------------------------------------------------

// handleListTools returns tool summaries, or with ?format=functions the
// function-calling definitions a client can hand straight to a model.
// Function sets can be narrowed with ?only=a,b or ?exclude=a,b.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch q.Get("format") {
	case "", "summary":
		writeJSON(w, http.StatusOK, s.hub.ListTools())
	case "functions":
		list, err := s.functionSet(q.Get("only"), q.Get("exclude"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, list.Definitions())
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "format must be summary or functions")
	}
}

func (s *Server) functionSet(only, exclude string) (*tools.ToolList, error) {
	all := s.hub.Registry().AllTools()
	list := all
	if names := splitNames(only); len(names) > 0 {
		list = tools.NewToolList()
		for _, name := range names {
			t, ok := all.Get(name)
			if !ok {
				return nil, fmt.Errorf("unknown tool %q", name)
			}
			list.Add(t)
		}
	}
	for _, name := range splitNames(exclude) {
		list.Remove(name)
	}
	return list, nil
}

func splitNames(csv string) []string {
	var out []string
	for _, n := range strings.Split(csv, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

type addToolRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Code        string          `json:"code"`
	Parameters  json.RawMessage `json:"parameters"`
}

func (s *Server) handleAddTool(w http.ResponseWriter, r *http.Request) {
	var req addToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name and code are required")
		return
	}

	params, err := schema.ParseParameters(req.Parameters)
	if err != nil {
		writeHubError(w, err)
		return
	}
	tool, err := s.hub.AddDynamicTool(req.Name, req.Description, params, req.Code)
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tool.Summary())
}

func (s *Server) handleRemoveTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.hub.RemoveDynamicTool(name)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "name": name})
}

type invokeResponse struct {
	Result  any    `json:"result"`
	Text    string `json:"text"`
	IsError bool   `json:"isError"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{}
	if err := decodeOptional(r, &args); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := s.hub.Invoke(r.Context(), r.PathValue("name"), args)
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invokeResponse{
		Result:  result,
		Text:    schema.ResultText(result),
		IsError: schema.IsFailure(result),
	})
}

func (s *Server) handleToolCreatorStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"enabled": s.hub.ToolCreatorEnabled()})
}

func (s *Server) handleEnableToolCreator(w http.ResponseWriter, _ *http.Request) {
	s.hub.EnableToolCreator()
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true})
}

func (s *Server) handleDisableToolCreator(w http.ResponseWriter, _ *http.Request) {
	s.hub.DisableToolCreator()
	writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
}

// decodeOptional decodes a JSON body into dst; an empty body leaves dst
// untouched.
func decodeOptional(r *http.Request, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
