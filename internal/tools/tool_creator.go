package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

// ToolCreatorName is the meta tool that lets the agent define new tools.
const ToolCreatorName = "tool-creator"

// CreateFunc installs a dynamic tool.
type CreateFunc func(name, description string, params *schema.Parameters, code string) (schema.Tool, error)

var toolCreatorParams = mustParams(`{
	"type": "object",
	"properties": {
		"name": {"type": "string", "description": "Unique name of the new tool"},
		"description": {"type": "string", "description": "What the tool does, for the model"},
		"code": {"type": "string", "description": "Body of an async JavaScript function; the declared parameters are in scope by name"},
		"parameters": {"type": "object", "description": "JSON Schema object describing the tool's parameters"}
	},
	"required": ["name", "description", "code"]
}`)

// NewToolCreator returns the tool-creator meta tool. Invoking it defines a
// dynamic tool through create.
func NewToolCreator(create CreateFunc) schema.Tool {
	return schema.NewTool(ToolCreatorName,
		"Create a new tool from JavaScript code. The tool becomes available immediately.",
		toolCreatorParams, schema.KindDynamic, "",
		func(_ context.Context, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			description, _ := args["description"].(string)
			code, _ := args["code"].(string)
			if strings.TrimSpace(name) == "" || strings.TrimSpace(code) == "" {
				return schema.Failure("tool-creator needs a name and code"), nil
			}

			params, err := schema.ParametersFromValue(args["parameters"])
			if err != nil {
				return schema.Failure("%v", err), nil
			}
			if _, err := create(name, description, params, code); err != nil {
				return schema.Failure("%v", err), nil
			}
			return "Tool created", nil
		})
}

func mustParams(raw string) *schema.Parameters {
	p, err := schema.ParseParameters(json.RawMessage(raw))
	if err != nil {
		panic(fmt.Sprintf("tools: invalid built-in schema: %v", err))
	}
	return p
}
