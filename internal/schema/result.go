package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FailurePrefix marks textual results that describe a failed execution.
const FailurePrefix = "Error: "

// Failure renders a tool execution failure as text.
func Failure(format string, args ...any) string {
	return FailurePrefix + fmt.Sprintf(format, args...)
}

// DynamicFailure is the structured failure value of a dynamic tool.
func DynamicFailure(message string) map[string]any {
	return map[string]any{"success": false, "errorMessage": message}
}

// IsFailure reports whether result is a tool execution failure value.
func IsFailure(result any) bool {
	switch v := result.(type) {
	case string:
		return strings.HasPrefix(v, FailurePrefix)
	case map[string]any:
		ok, present := v["success"].(bool)
		return present && !ok
	}
	return false
}

// ResultText renders any tool result as text for the agent.
func ResultText(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(data)
}
