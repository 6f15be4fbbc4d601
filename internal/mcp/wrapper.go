package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

// wrapTools turns tools/list entries into registry tools bound to this
// adapter. Names are kept as the server advertises them.
func (a *Adapter) wrapTools(defs []ToolDefinition) []schema.Tool {
	tools := make([]schema.Tool, 0, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		params, err := schema.ParseParameters(def.InputSchema)
		if err != nil {
			a.logger.Warn("MCP tool input schema unusable, exposing without parameters", "tool", def.Name, "err", err)
			params = schema.EmptyParameters()
		}

		origName := def.Name
		tools = append(tools, schema.NewTool(def.Name, def.Description, params, schema.KindStdio, a.name,
			func(ctx context.Context, args map[string]any) (any, error) {
				return a.CallTool(ctx, origName, args)
			}))

		a.logger.Debug("MCP tool registered", "tool", def.Name)
	}
	return tools
}

func decodeCallResult(raw json.RawMessage) any {
	var res CallToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return string(raw)
	}

	var parts []string
	for _, block := range res.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return schema.FailurePrefix + text
	}
	if text != "" {
		return text
	}
	if len(res.StructuredContent) > 0 && string(res.StructuredContent) != "null" {
		var structured any
		if err := json.Unmarshal(res.StructuredContent, &structured); err == nil {
			return structured
		}
	}
	return "(no output)"
}
