package tools

import (
	"encoding/json"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

// ToolList is a mutable, ordered set of tools, such as the subset a client
// hands to a model for one request.
type ToolList struct {
	order []string
	tools map[string]schema.Tool
}

func NewToolList(ts ...schema.Tool) *ToolList {
	list := ToolList{tools: make(map[string]schema.Tool, len(ts))}
	for _, t := range ts {
		list.Add(t)
	}

	return &list
}

// Get returns the tool with the given name.
func (r *ToolList) Get(name string) (schema.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Add registers a tool, replacing any existing tool with the same name.
func (r *ToolList) Add(t schema.Tool) schema.Tool {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t

	return t
}

// Remove drops a tool by name.
func (r *ToolList) Remove(name string) {
	if _, ok := r.tools[name]; !ok {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *ToolList) Len() int { return len(r.order) }

// Definitions returns all tool definitions in OpenAI function-calling format.
func (r *ToolList) Definitions() []map[string]any {
	list := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		var params any
		raw, err := json.Marshal(t.Parameters())
		if err == nil {
			err = json.Unmarshal(raw, &params)
		}
		if err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		list = append(list, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"parameters":  params,
			},
		})
	}
	return list
}
